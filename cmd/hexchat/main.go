package main

import (
	"strings"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	hexchat_cmds "github.com/go-go-golems/hexchat/cmd/hexchat/cmds"
	hexchat_doc "github.com/go-go-golems/hexchat/cmd/hexchat/doc"
)

var rootCmd = &cobra.Command{
	Use:   "hexchat",
	Short: "hexchat is a terminal client for the realtime chat service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// reinitialize the logger now that --log-level and co are parsed
		if err := logging.InitLoggerFromCobra(cmd); err != nil {
			return err
		}
		if f := cmd.Flags(); f != nil {
			lvl, _ := f.GetString("log-level")
			if lvl != "" {
				if l, err := zerolog.ParseLevel(lvl); err == nil {
					zerolog.SetGlobalLevel(l)
				}
			}
			withCaller, _ := f.GetBool("with-caller")
			if withCaller {
				log.Logger = log.Logger.With().Caller().Logger()
			}
		}
		return nil
	},
}

func main() {
	if err := clay.InitGlazed("hexchat", rootCmd); err != nil {
		cobra.CheckErr(err)
	}
	// HEXCHAT_ACCESS_TOKEN and friends
	viper.SetEnvPrefix("hexchat")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	helpSystem := help.NewHelpSystem()
	err := hexchat_doc.AddDocToHelpSystem(helpSystem)
	cobra.CheckErr(err)
	help_cmd.SetupCobraRootCommand(helpSystem, rootCmd)

	chatCmd, err := hexchat_cmds.NewChatCommand()
	cobra.CheckErr(err)
	command, err := cli.BuildCobraCommand(chatCmd)
	cobra.CheckErr(err)
	rootCmd.AddCommand(command)

	profilesCmd, err := hexchat_cmds.NewProfilesCommand()
	cobra.CheckErr(err)
	command, err = cli.BuildCobraCommand(profilesCmd)
	cobra.CheckErr(err)
	rootCmd.AddCommand(command)

	cobra.CheckErr(rootCmd.Execute())
}
