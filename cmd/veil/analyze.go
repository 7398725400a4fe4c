package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/chroma/quick"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/veilpii/veil/pkg/models"
)

var analyzeFlags struct {
	language  string
	entities  []string
	threshold float64
	explain   bool
	asJSON    bool
	operators map[string]string
	key       string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [FILE|-]",
	Short: "Detect PII entities in a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appState, closeStores, text, err := setupOneShot(cmd, args)
		if err != nil {
			return err
		}
		defer closeStores()

		started := time.Now()
		resp, err := appState.Analyzer.Analyze(cmd.Context(), analyzeRequest(cmd, text))
		if err != nil {
			return err
		}
		elapsed := time.Since(started)

		out := cmd.OutOrStdout()
		tty := isTerminal(out)
		if analyzeFlags.asJSON || !tty {
			return writeJSON(out, resp, tty)
		}
		renderMatches(out, text, resp, color.New(color.Bold, color.FgBlack, color.BgYellow).SprintFunc())
		fmt.Fprintln(out, summaryLine(len(resp.Results), text, elapsed))
		return nil
	},
}

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize [FILE|-]",
	Short: "Detect PII entities and print the anonymized text",
	Example: "veil anonymize --operator PERSON=fake --operator CREDIT_CARD=mask notes.txt\n" +
		"echo 'call 212-555-5555' | veil anonymize",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appState, closeStores, text, err := setupOneShot(cmd, args)
		if err != nil {
			return err
		}
		defer closeStores()

		analyzed, err := appState.Analyzer.Analyze(cmd.Context(), analyzeRequest(cmd, text))
		if err != nil {
			return err
		}

		operators := make(map[string]models.OperatorConfig, len(analyzeFlags.operators))
		for entity, op := range analyzeFlags.operators {
			operators[entity] = models.OperatorConfig{Type: models.OperatorType(op), Key: analyzeFlags.key}
		}
		resp, err := appState.Anonymizer.Anonymize(cmd.Context(), &models.AnonymizeRequest{
			Text:            text,
			AnalyzerResults: analyzed.Results,
			Operators:       operators,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if analyzeFlags.asJSON {
			return writeJSON(out, resp, isTerminal(out))
		}
		fmt.Fprint(out, resp.Text)
		if !strings.HasSuffix(resp.Text, "\n") {
			fmt.Fprintln(out)
		}
		return nil
	},
}

var recognizersCmd = &cobra.Command{
	Use:   "recognizers",
	Short: "List the recognizers the analyzer would run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		appState, closeStores, err := NewAppState(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		descriptors := appState.Analyzer.Recognizers(analyzeFlags.language)
		out := cmd.OutOrStdout()
		if analyzeFlags.asJSON {
			return writeJSON(out, descriptors, isTerminal(out))
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tLANGUAGE\tVERSION\tENTITIES")
		for _, d := range descriptors {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.SupportedLanguage, d.Version,
				strings.Join(d.SupportedEntities, ","))
		}
		return tw.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{analyzeCmd, anonymizeCmd} {
		c.Flags().StringSliceVarP(&analyzeFlags.entities, "entities", "e", nil, "entity types to look for, default all")
		c.Flags().Float64VarP(&analyzeFlags.threshold, "threshold", "t", 0, "minimum score, default from config")
		c.Flags().BoolVar(&analyzeFlags.explain, "explain", false, "include the decision process for each match")
	}
	for _, c := range []*cobra.Command{analyzeCmd, anonymizeCmd, recognizersCmd} {
		c.Flags().StringVarP(&analyzeFlags.language, "language", "l", "", "language code, default from config")
		c.Flags().BoolVar(&analyzeFlags.asJSON, "json", false, "print JSON even on a terminal")
	}
	anonymizeCmd.Flags().StringToStringVar(&analyzeFlags.operators, "operator", nil,
		"ENTITY=OPERATOR, e.g. PERSON=fake. DEFAULT sets the fallback operator")
	anonymizeCmd.Flags().StringVar(&analyzeFlags.key, "key", os.Getenv("VEIL_ENCRYPT_KEY"),
		"AES key for the encrypt operator, default $VEIL_ENCRYPT_KEY")
}

// setupOneShot loads config, builds the app state and reads the input text.
func setupOneShot(cmd *cobra.Command, args []string) (*models.AppState, func(), string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, "", err
	}

	text, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return nil, nil, "", err
	}

	appState, closeStores, err := NewAppState(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, "", err
	}
	return appState, closeStores, text, nil
}

func analyzeRequest(cmd *cobra.Command, text string) *models.AnalyzeRequest {
	req := &models.AnalyzeRequest{
		Text:                  text,
		Language:              analyzeFlags.language,
		Entities:              analyzeFlags.entities,
		ReturnDecisionProcess: analyzeFlags.explain,
	}
	if cmd.Flags().Changed("threshold") {
		threshold := analyzeFlags.threshold
		req.ScoreThreshold = &threshold
	}
	return req
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeJSON writes v as indented JSON, syntax highlighted for terminals.
func writeJSON(w io.Writer, v any, highlight bool) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if !highlight {
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, string(b)+"\n", "json", "terminal256", "github"); err != nil {
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// renderMatches prints text with each match marked by mark, followed by a
// table of the matches.
func renderMatches(w io.Writer, text string, resp *models.AnalyzeResponse, mark func(...any) string) {
	runes := []rune(text)
	fmt.Fprintln(w, highlightSpans(runes, resp.Results, mark))
	if len(resp.Results) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tTEXT\tSPAN\tSCORE\tRECOGNIZER")
	for _, m := range resp.Results {
		recognizer := m.RecognitionMetadata[models.RecognizerNameKey]
		fmt.Fprintf(tw, "%s\t%s\t%d-%d\t%.2f\t%s\n",
			m.EntityType, string(runes[m.Start:m.End]), m.Start, m.End, m.Score, recognizer)
	}
	tw.Flush()

	for _, f := range resp.FailedRecognizers {
		fmt.Fprintf(w, "recognizer %s failed: %s\n", f.Recognizer, f.Error)
	}
}

// highlightSpans wraps every matched span of text with mark. Overlapping
// matches are marked once, from the earliest start.
func highlightSpans(text []rune, matches []models.EntityMatch, mark func(...any) string) string {
	sorted := append([]models.EntityMatch(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var sb strings.Builder
	cursor := 0
	for _, m := range sorted {
		start := max(m.Start, cursor)
		if start >= m.End {
			continue
		}
		sb.WriteString(string(text[cursor:start]))
		sb.WriteString(mark(string(text[start:m.End])))
		cursor = m.End
	}
	sb.WriteString(string(text[cursor:]))
	return sb.String()
}

func summaryLine(found int, text string, elapsed time.Duration) string {
	noun := "entities"
	if found == 1 {
		noun = "entity"
	}
	return fmt.Sprintf("found %s %s in %s of text (%s)",
		humanize.Comma(int64(found)), noun,
		humanize.Bytes(uint64(len(text))), elapsed.Round(time.Millisecond))
}
