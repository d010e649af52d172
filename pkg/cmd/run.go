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
	"path/filepath"

	"github.com/callweave/callweave/pkg/binmod"
	"github.com/callweave/callweave/pkg/interp"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] module_file Namespace.Type::Method",
	Short: "execute a method of a module on the reference interpreter.",
	Long: `Execute a given entry method and, when requested, write the stopped-machine
image back so recorded invocation counters can be reported afterwards.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		//
		resolver := binmod.NewResolver(filepath.Dir(args[0]))
		//
		image, err := binmod.Load(args[0], resolver)
		//
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		//
		machine := interp.New(image)
		//
		entry, ok := machine.FindMethod(args[1])
		//
		if !ok {
			fmt.Printf("no such method: %s\n", args[1])
			os.Exit(2)
		}
		//
		times := GetUint(cmd, "times")
		//
		var result uint64
		//
		for i := uint(0); i < times; i++ {
			if result, err = machine.Invoke(entry, nil); err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
		}
		//
		fmt.Printf("%s => %d\n", args[1], result)
		// Persist updated static slots when asked to
		if GetFlag(cmd, "save") {
			if _, err := image.Save(args[0]); err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Uint("times", 1, "number of times to invoke the entry method")
	runCmd.Flags().Bool("save", false, "write the stopped-machine image back to disk")
}
