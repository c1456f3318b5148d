package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	scoring "github.com/abimbolaoige/kfm-counsel-chat/internal/analysis/assessment"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/assessment"
)

func newAssessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "assess [triage|singles]",
		Short:     "Take a relationship health assessment",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{assessment.KindTriage, assessment.KindSingles},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := assessment.KindTriage
			if len(args) == 1 {
				kind = args[0]
			}
			bank, ok := assessment.NewMemoryStore(assessment.Seed()).FindByKind(kind)
			if !ok {
				return fmt.Errorf("unknown assessment %q", kind)
			}

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprintf(out, "%s\n(press enter to skip a question)\n\n", bank.Title)

			var answers []scoring.Answer
			for _, q := range bank.Questions {
				fmt.Fprintf(out, "%d. %s\n", q.ID, q.Text)
				for i, opt := range q.Options {
					fmt.Fprintf(out, "   %d) %s\n", i+1, opt.Label)
				}
				value, ok, err := readChoice(scanner, out, q)
				if err != nil {
					return err
				}
				if ok {
					answers = append(answers, scoring.Answer{QuestionID: q.ID, SelectedValue: value})
				}
			}

			result, err := scoring.Score(bank, answers)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nScore: %d%%\n%s\n%s\n", result.Score, result.Summary, result.Recommendation)

			if _, err := a.conv.Profiles().RecordAssessment(cmd.Context(), result); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: result was not saved: %v\n", err)
			}
			return nil
		},
	}
}

// readChoice 读取选项序号并换算为选项分值，空行表示跳过。
func readChoice(scanner *bufio.Scanner, out io.Writer, q assessment.Question) (int, bool, error) {
	for {
		fmt.Fprint(out, "   > ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return 0, false, scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return 0, false, nil
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= len(q.Options) {
			return q.Options[n-1].Value, true, nil
		}
		fmt.Fprintf(out, "   choose 1-%d\n", len(q.Options))
	}
}
