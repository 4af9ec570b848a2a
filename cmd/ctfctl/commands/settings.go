package commands

import (
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
)

type settingsView struct {
	Status        string     `yaml:"status"`
	Start         time.Time  `yaml:"start"`
	End           time.Time  `yaml:"end"`
	ActualEnd     *time.Time `yaml:"actual_end,omitempty"`
	FinalistCount int        `yaml:"finalist_count"`
	MaxTamper     int        `yaml:"max_tab_switches"`
	Grouping      bool       `yaml:"team_grouping"`
	GroupCount    int        `yaml:"group_count,omitempty"`
	GroupMessages []string   `yaml:"group_messages,omitempty"`
}

func viewSettings(s ctf.Settings) settingsView {
	return settingsView{
		Status:        string(s.EventStatus),
		Start:         s.EventStartTime,
		End:           s.EventEndTime,
		ActualEnd:     s.ActualEndTime,
		FinalistCount: s.FinalistCount,
		MaxTamper:     s.MaxTabSwitches,
		Grouping:      s.EnableTeamGrouping,
		GroupCount:    s.GroupCount,
		GroupMessages: s.GroupMessages,
	}
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Print the event settings as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		s, err := e.engine.Settings(ctx)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(viewSettings(s))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
}
