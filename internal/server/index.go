package server

// indexHTML is the built-in remote control page.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>VoiceRec</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css">
    <style>
        #wave { display: flex; align-items: center; gap: 4px; height: 80px; }
        #wave span { width: 3px; background: currentColor; border-radius: 2px; }
    </style>
</head>
<body>
    <main class="container">
        <h1>VoiceRec</h1>
        <p><strong id="message">Connecting...</strong> <small id="error"></small></p>
        <div id="wave"></div>
        <div role="group">
            <button data-cmd="start">Start</button>
            <button data-cmd="toggle-pause">Pause / Resume</button>
            <button data-cmd="stop-temporary">Stop for review</button>
            <button data-cmd="stop">Finish</button>
            <button data-cmd="play">Play</button>
        </div>
        <div role="group">
            <button class="secondary" data-cmd="record-again">Record again</button>
            <button class="secondary" data-cmd="restart">Restart</button>
            <button class="contrast" data-cmd="delete">Delete</button>
        </div>
        <p><a id="download" href="/artifact" hidden>Download recording</a></p>
    </main>
    <script>
        const wave = document.getElementById('wave');
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws?width=' + wave.clientWidth);
        ws.onmessage = (ev) => {
            const msg = JSON.parse(ev.data);
            if (msg.success === false) {
                document.getElementById('error').textContent = msg.error;
                return;
            }
            document.getElementById('message').textContent = msg.message;
            document.getElementById('error').textContent = msg.error || '';
            document.getElementById('download').hidden = !msg.artifact;
            wave.replaceChildren(...msg.bars.map((v) => {
                const bar = document.createElement('span');
                bar.style.height = Math.round(v * 100) + '%';
                return bar;
            }));
        };
        ws.onclose = () => { document.getElementById('message').textContent = 'Disconnected'; };
        document.querySelectorAll('button[data-cmd]').forEach((b) => {
            b.onclick = () => ws.send(JSON.stringify({ command: b.dataset.cmd }));
        });
    </script>
</body>
</html>`
