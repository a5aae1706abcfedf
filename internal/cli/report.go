package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/matzehuels/stackgate/pkg/eval"
)

// printVerdict renders a single verdict as a styled report.
func printVerdict(v *eval.Verdict) {
	ref := fmt.Sprintf("%s@%s", v.PackageID, v.Release)
	if v.IsStable {
		printSuccess("%s is %s", StyleHighlight.Render(ref), StyleStable.Render("stable"))
		return
	}

	printError("%s is %s", StyleHighlight.Render(ref), StyleUnstable.Render("unstable"))
	for _, violation := range v.Violations {
		subject := ""
		if violation.Subject != "" {
			subject = StyleValue.Render(violation.Subject) + "  "
		}
		printDetail("%s  %s%s",
			StyleWarning.Render(violation.Kind.String()),
			subject,
			violation.Detail)
	}
	if len(v.UnstableDependencies) > 0 {
		printDetail("unstable closure: %s", strings.Join(v.UnstableDependencies, ", "))
	}
}

// printVerdicts renders a batch report followed by a summary line.
func printVerdicts(verdicts []*eval.Verdict) {
	stable := 0
	for _, v := range verdicts {
		printVerdict(v)
		if v.IsStable {
			stable++
		}
	}
	printNewline()
	if stable == len(verdicts) {
		printSuccess("%d/%d packages stable", stable, len(verdicts))
	} else {
		printWarning("%d/%d packages stable", stable, len(verdicts))
	}
}

// writeVerdictJSON emits verdicts as indented JSON on stdout, one
// document for the whole batch.
func writeVerdictJSON(verdicts []*eval.Verdict) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if len(verdicts) == 1 {
		return enc.Encode(verdicts[0])
	}
	return enc.Encode(verdicts)
}
