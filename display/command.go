package display

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/lore/errors"
)

// ShouldOutputJSON determines whether a command should emit JSON, from
// its --json flag, the global --json flag, or the environment.
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return IsMachineEnvironment()
	}

	// An explicit --json on the command wins either way
	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}

	if globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json"); globalFlag {
		return true
	}

	return IsMachineEnvironment()
}

// OutputJSON marshals and prints v using MarshalJSON.
func OutputJSON(v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	fmt.Println(string(data))
	return nil
}
