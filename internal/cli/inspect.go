package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackgate/pkg/source/manifest"
)

// inspectCommand creates the inspect command for summarizing a
// snapshot: timeline, classification histories, open deprecation cases,
// and graph statistics.
func (c *CLI) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <manifest.toml>",
		Short: "Summarize a snapshot's timeline, extensions, and graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := manifest.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Println(StyleTitle.Render("Snapshot " + snap.ID))
			printStats(snap.Timeline.Len(), snap.Graph.NodeCount(), snap.Graph.EdgeCount())
			printNewline()

			releases := snap.Timeline.Releases()
			names := make([]string, len(releases))
			for i, r := range releases {
				names[i] = string(r)
			}
			printKeyValue("timeline", strings.Join(names, " "+iconArrow+" "))

			exts := snap.Registry.Extensions()
			if len(exts) > 0 {
				printNewline()
				fmt.Println(StyleTitle.Render("Extensions"))
				for _, ext := range exts {
					var events []string
					for _, t := range snap.Registry.Transitions(ext) {
						events = append(events, fmt.Sprintf("%s@%s", t.To, t.Release))
					}
					printKeyValue(ext, strings.Join(events, ", "))
					if cs := snap.Cases.Cases(ext); len(cs) > 0 {
						for _, dc := range cs {
							if effective, ok := dc.EffectiveNotBefore(); ok {
								printDetail("deprecation announced %s, effective from %s (%d cycles)",
									dc.AnnouncedAt, effective, dc.MinimumCycles)
							} else {
								printDetail("deprecation announced %s, not yet effective within the timeline (%d cycles)",
									dc.AnnouncedAt, dc.MinimumCycles)
							}
						}
					}
				}
			}

			if tags := snap.Registry.FeatureTags(); len(tags) > 0 {
				printNewline()
				printKeyValue("feature tags", strings.Join(tags, ", "))
			}

			if roots := snap.Graph.Roots(); len(roots) > 0 {
				rootNames := make([]string, len(roots))
				for i, r := range roots {
					rootNames[i] = r.String()
				}
				printNewline()
				printKeyValue("graph roots", strings.Join(rootNames, ", "))
				printNextStep("Evaluate everything", fmt.Sprintf("stackgate batch %s --all", args[0]))
			}
			return nil
		},
	}
}
