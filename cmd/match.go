package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/xref-cli/internal/match"
	"github.com/sells-group/xref-cli/internal/model"
)

var (
	matchMPN          string
	matchAnswers      []string
	matchOverrides    []string
	matchHideObsolete bool
	matchJSON         bool
	matchLimit        int
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find replacement candidates for an MPN",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("match"); err != nil {
			return err
		}

		answers, err := parseKV(matchAnswers, "answer")
		if err != nil {
			return err
		}
		overrides, err := parseKV(matchOverrides, "override")
		if err != nil {
			return err
		}

		svc, err := initMatcher(initCatalog())
		if err != nil {
			return err
		}

		recs, err := svc.Match(ctx, match.Request{
			MPN:                matchMPN,
			Overrides:          overrides,
			ApplicationContext: answers,
			HideObsolete:       matchHideObsolete || cfg.Matching.HideObsolete,
		})
		if err != nil {
			return eris.Wrapf(err, "match %s", matchMPN)
		}

		if matchLimit > 0 && len(recs) > matchLimit {
			recs = recs[:matchLimit]
		}

		if matchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		}

		printRecommendations(matchMPN, recs)
		zap.L().Info("match complete",
			zap.String("mpn", matchMPN),
			zap.Int("recommendations", len(recs)),
		)
		return nil
	},
}

// printRecommendations renders the ranked list as a table, with per-attribute
// detail for anything that is not a clean pass.
func printRecommendations(mpn string, recs []model.XrefRecommendation) {
	p := message.NewPrinter(language.English)

	if len(recs) == 0 {
		p.Printf("No replacement candidates found for %s.\n", mpn)
		return
	}

	p.Printf("Replacements for %s (%d candidates):\n\n", mpn, len(recs))
	for i, rec := range recs {
		p.Printf("%3d. %-24s %-20s %6.2f%%  %s\n",
			i+1, rec.Part.MPN, rec.Part.Manufacturer, rec.MatchPercentage, rec.Part.Status)
		if rec.Part.UnitPrice != nil {
			p.Printf("     unit price %.4f", *rec.Part.UnitPrice)
			if rec.Part.QuantityAvailable != nil {
				p.Printf(", %d in stock", *rec.Part.QuantityAvailable)
			}
			p.Printf("\n")
		}
		for _, d := range rec.MatchDetails {
			if d.RuleResult == model.ResultPass {
				continue
			}
			p.Printf("     %-24s %-10s %-8s %s\n", d.ParameterID, d.MatchStatus, d.RuleResult, d.Note)
		}
		if rec.Notes != "" {
			p.Printf("     note: %s\n", rec.Notes)
		}
	}
}

func init() {
	matchCmd.Flags().StringVar(&matchMPN, "mpn", "", "source part number (required)")
	matchCmd.Flags().StringArrayVar(&matchAnswers, "answer", nil, "application context answer, question_id=value (repeatable)")
	matchCmd.Flags().StringArrayVar(&matchOverrides, "override", nil, "source attribute override, attribute_id=value (repeatable)")
	matchCmd.Flags().BoolVar(&matchHideObsolete, "hide-obsolete", false, "drop obsolete candidates from the output")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "print raw JSON instead of a table")
	matchCmd.Flags().IntVar(&matchLimit, "limit", 0, "max candidates to print (0 = all)")
	_ = matchCmd.MarkFlagRequired("mpn")
	rootCmd.AddCommand(matchCmd)
}
