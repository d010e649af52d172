// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"fmt"
	"os"

	"github.com/callweave/callweave/pkg/weaver"
	"github.com/spf13/cobra"
)

var weaveCmd = &cobra.Command{
	Use:   "weave [flags] module_file",
	Short: "instrument a module with per-method invocation counters.",
	Long: `Rewrite a given module so that every eligible method invocation increments a
per-method counter at runtime.  Counters are public static fields on
synthesized helper types; bodyless methods (abstract, interface, native) are
counted at their call sites instead.  Weaving an already-instrumented module
is a no-op.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		//
		config := weaver.NewConfig(args[0])
		// Merge optional configuration file first, then flags on top
		if file := GetString(cmd, "config"); file != "" {
			if err := config.ApplyFile(file); err != nil {
				fmt.Println(err)
				os.Exit(2)
			}
		}
		//
		if prefix := GetString(cmd, "prefix"); prefix != "" {
			config.Prefix = prefix
		}
		//
		if output := GetString(cmd, "output"); output != "" {
			config.Output = output
		}
		//
		if dir := GetString(cmd, "backup-dir"); dir != "" {
			config.BackupDir = dir
		}
		//
		if GetFlag(cmd, "no-backup") {
			config.Backup = false
		}
		//
		if GetFlag(cmd, "instrument-compiler-generated") {
			config.InstrumentCompilerGenerated = true
		}
		//
		config.Includes = append(config.Includes, GetNamespaceList(cmd, "include")...)
		config.Excludes = append(config.Excludes, GetNamespaceList(cmd, "exclude")...)
		config.SearchDirs = append(config.SearchDirs, GetStringArray(cmd, "search-dir")...)
		//
		result, err := weaver.Weave(config)
		//
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		// An idempotence skip is a success
		if result.Skipped {
			fmt.Printf("%s: already instrumented\n", args[0])
			return
		}
		//
		fmt.Printf("%d types visited, %d helpers created\n", result.TypesVisited, result.HelpersCreated)
		fmt.Printf("%d method bodies instrumented, %d call sites spliced\n",
			result.MethodsInstrumented, result.CallSitesSpliced)
	},
}

func init() {
	rootCmd.AddCommand(weaveCmd)
	weaveCmd.Flags().String("prefix", "", "override counter field name prefix")
	weaveCmd.Flags().StringArray("include", []string{}, "namespaces to instrument (comma separable, repeatable)")
	weaveCmd.Flags().StringArray("exclude", []string{}, "namespaces to skip (comma separable, repeatable)")
	weaveCmd.Flags().StringP("output", "o", "", "write to a distinct path rather than overwriting")
	weaveCmd.Flags().Bool("no-backup", false, "disable backup creation")
	weaveCmd.Flags().Bool("instrument-compiler-generated", false, "include compiler-synthesized members")
	weaveCmd.Flags().StringArray("search-dir", []string{}, "append to reference-resolution search list (repeatable)")
	weaveCmd.Flags().String("backup-dir", "", "directory for backup files and path records")
	weaveCmd.Flags().String("config", "", "merge a TOML configuration file")
}
