// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

const (
	serveCmdUsage = "serve"
	serveCmdShort = "start the sample application with the shared logging setup"
	serveCmdLong  = `Start the sample application with the shared logging setup.
	The bundled logging settings are merged with the override files, the result
	is written to a temporary file that configures the logging backend and is
	removed when the process exits.

	When no --config file is set, appsettings.json and appsettings.<environment>.json
	are read from --config-dir if present. The environment is read from the
	AppSettings.environment key of the override files, then from the
	SHAREDLOG_ENVIRONMENT and APP_ENV variables, and defaults to development.

	The application listens on HTTP_HOST:HTTP_PORT and exposes GET /helloworld
	together with the /-/healthz, /-/ready and /-/metrics routes.`

	serveCmdExample = `# Start the application with the settings found in the current directory
	sharedlog serve

	# Start the application with an explicit override file
	sharedlog serve --config config/logging.yaml`

	mergeCmdUsage = "merge"
	mergeCmdShort = "print the logging settings obtained merging the override files"
	mergeCmdLong  = `Print the logging settings obtained merging the override files.
	Every override file is merged in order over the bundled defaults, or over the
	file set with --default: objects are merged key by key, arrays and scalars
	are replaced and an explicit null clears the inherited value.`

	mergeCmdExample = `# Print the bundled defaults merged with two override files
	sharedlog merge -c appsettings.json -c appsettings.production.json

	# Print the result as yaml
	sharedlog merge -c appsettings.json -o yaml`
)

// ServeCmd returns the Cobra command that starts the sample application.
func ServeCmd() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:     serveCmdUsage,
		Short:   heredoc.Doc(serveCmdShort),
		Long:    heredoc.Doc(serveCmdLong),
		Example: heredoc.Doc(serveCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              noArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.toOptions(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.execute(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

// MergeCmd returns the Cobra command that prints the merged logging settings.
func MergeCmd() *cobra.Command {
	flags := &mergeFlags{}
	cmd := &cobra.Command{
		Use:     mergeCmdUsage,
		Short:   heredoc.Doc(mergeCmdShort),
		Long:    heredoc.Doc(mergeCmdLong),
		Example: heredoc.Doc(mergeCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              noArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.toOptions(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.execute(); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}
