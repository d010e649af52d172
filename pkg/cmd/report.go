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
	"os"

	"github.com/callweave/callweave/pkg/collect"
	"github.com/callweave/callweave/pkg/weaver"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var reportCmd = &cobra.Command{
	Use:   "report [flags] module_file",
	Short: "report invocation counts recorded in a module image.",
	Long: `Read the counters out of a stopped-machine image and emit a per-type report.
Counters which were never hit are suppressed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		//
		var (
			image   = readModule(args[0])
			prefix  = GetString(cmd, "prefix")
			entries = collect.Collect(image.Module, prefix, weaver.HelperSuffix)
		)
		// Size the report to the terminal when attached to one
		width := 80
		//
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = w
		}
		//
		collect.Report(os.Stdout, entries, width)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("prefix", weaver.DefaultPrefix, "counter field name prefix")
}
