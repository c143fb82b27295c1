package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coder/serpent"
	"github.com/livedash/livedash/buildinfo"
)

// version prints the livedash version
func (*RootCmd) version() *serpent.Command {
	var outputJSON bool

	return &serpent.Command{
		Use:   "version",
		Short: "Show livedash version",
		Options: serpent.OptionSet{
			{
				Flag:        "json",
				Description: "Emit version information in machine-readable JSON format.",
				Value:       serpent.BoolOf(&outputJSON),
			},
		},
		Handler: func(inv *serpent.Invocation) error {
			buildTime, valid := buildinfo.Time()
			if outputJSON {
				versionInfo := struct {
					Version     string `json:"version"`
					BuildTime   string `json:"build_time,omitempty"`
					ExternalURL string `json:"external_url"`
				}{
					Version:     buildinfo.Version(),
					ExternalURL: buildinfo.ExternalURL(),
				}
				if valid {
					versionInfo.BuildTime = buildTime.Format(time.UnixDate)
				}
				enc := json.NewEncoder(inv.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(versionInfo)
			}

			var str strings.Builder
			_, _ = str.WriteString("livedash " + buildinfo.Version())
			if valid {
				_, _ = str.WriteString(" " + buildTime.Format(time.UnixDate))
			}
			_, _ = str.WriteString("\n" + buildinfo.ExternalURL() + "\n")
			_, _ = fmt.Fprint(inv.Stdout, str.String())
			return nil
		},
	}
}
