// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mia-platform/sharedlog/internal/config"
)

const (
	configPathFlagName  = "config"
	configPathFlagShort = "c"
	configPathFlagUsage = "Path to a settings file merged over the defaults. Can be specified multiple times, later files win."

	configDirFlagName     = "config-dir"
	configDirFlagUsage    = "Directory searched for appsettings.json and appsettings.<environment>.json when no --config is set"
	defaultConfigDirValue = "."

	artifactDirFlagName  = "artifact-dir"
	artifactDirFlagUsage = "Directory where the merged settings file is written (defaults to the system temporary directory)"

	defaultPathFlagName  = "default"
	defaultPathFlagUsage = "Path to the settings file used as base instead of the bundled defaults"

	sectionFlagName  = "section"
	sectionFlagUsage = "Name of the top level section holding the logging settings"

	outputFlagName  = "output"
	outputFlagShort = "o"
	outputFlagUsage = "Output format of the merged settings (json or yaml)"

	outputJSON = "json"
	outputYAML = "yaml"
)

// serveFlags collects the CLI options of the serve command.
type serveFlags struct {
	configPaths []string
	configDir   string
	artifactDir string
	section     string
}

// addFlags registers the CLI flags on cmd.
func (f *serveFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(
		&f.configPaths,
		configPathFlagName,
		configPathFlagShort,
		nil,
		configPathFlagUsage)

	cmd.Flags().StringVar(&f.configDir, configDirFlagName, defaultConfigDirValue, configDirFlagUsage)
	cmd.Flags().StringVar(&f.artifactDir, artifactDirFlagName, "", artifactDirFlagUsage)
	cmd.Flags().StringVar(&f.section, sectionFlagName, config.DefaultSection, sectionFlagUsage)
}

// toOptions builds a serveOptions instance from the parsed flags.
func (f *serveFlags) toOptions(cmd *cobra.Command) (*serveOptions, error) {
	var paths []string
	var environment string
	var err error
	if len(f.configPaths) > 0 {
		if paths, err = collectPaths(f.configPaths); err != nil {
			return nil, err
		}
		if environment, err = resolveEnvironment(paths); err != nil {
			return nil, err
		}
	} else if paths, environment, err = defaultSettingsPaths(f.configDir); err != nil {
		return nil, err
	}

	return &serveOptions{
		configPaths:  paths,
		environment:  environment,
		artifactDir:  f.artifactDir,
		section:      strings.TrimSpace(f.section),
		stdout:       cmd.OutOrStdout(),
		stderr:       cmd.ErrOrStderr(),
		serverGetter: serverGetter,
	}, nil
}

// mergeFlags collects the CLI options of the merge command.
type mergeFlags struct {
	defaultPath string
	configPaths []string
	section     string
	output      string
}

// addFlags registers the CLI flags on cmd.
func (f *mergeFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.defaultPath, defaultPathFlagName, "", defaultPathFlagUsage)
	cmd.Flags().StringArrayVarP(
		&f.configPaths,
		configPathFlagName,
		configPathFlagShort,
		nil,
		configPathFlagUsage)
	cmd.Flags().StringVar(&f.section, sectionFlagName, config.DefaultSection, sectionFlagUsage)
	cmd.Flags().StringVarP(&f.output, outputFlagName, outputFlagShort, outputJSON, outputFlagUsage)

	_ = cmd.RegisterFlagCompletionFunc(outputFlagName, cobra.FixedCompletions([]string{outputJSON, outputYAML}, cobra.ShellCompDirectiveNoFileComp))
}

// toOptions builds a mergeOptions instance from the parsed flags.
func (f *mergeFlags) toOptions(cmd *cobra.Command) (*mergeOptions, error) {
	paths, err := collectPaths(f.configPaths)
	if err != nil {
		return nil, err
	}

	return &mergeOptions{
		defaultPath: f.defaultPath,
		configPaths: paths,
		section:     strings.TrimSpace(f.section),
		output:      strings.ToLower(f.output),
		writer:      cmd.OutOrStdout(),
	}, nil
}
