package cmd

import (
	"fmt"
	"sort"

	"github.com/audiolibrelab/voicerec/internal/config"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage VoiceRec configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Printf("# profile: %s\n", displayProfile(cfg.Profile))
		fmt.Print(string(out))
		return nil
	},
}

var configProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the profiles defined in the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := config.ReadRootConfig(cfgFile)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(root.Configs))
		for name := range root.Configs {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			marker := " "
			if name == root.ActiveConfig {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use [profile]",
	Short: "Make a profile the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, err := config.LoadWithProfile(cfgFile, name); err != nil {
			return err
		}
		if err := config.UpdateActiveConfig(cfgFile, name); err != nil {
			return fmt.Errorf("failed to update active profile: %w", err)
		}
		fmt.Printf("Active profile: %s\n", name)
		return nil
	},
}

func displayProfile(name string) string {
	if name == "" {
		return "(built-in defaults)"
	}
	return name
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configProfilesCmd)
	configCmd.AddCommand(configUseCmd)
}
