package ingest

import (
	"regexp"
	"strings"

	"github.com/viktsys/tdingest/models"
)

const (
	saleMarker       = "Vendas - Tesouro Direto -"
	redemptionMarker = "Resgates - Tesouro Direto -"
)

var (
	seriesPrefix = regexp.MustCompile(`Nome da série: ?`)

	// Everything from these markers to the end of the label is metadata.
	metadataSuffixes = []*regexp.Regexp{
		regexp.MustCompile(`Periodicidade:.*$`),
		regexp.MustCompile(`Unidade:.*$`),
		regexp.MustCompile(`Data de atualização:.*$`),
	}
)

// Recognition tells whether a classified label maps to a known instrument.
type Recognition int

const (
	Unrecognized Recognition = iota
	Recognized
)

func (r Recognition) String() string {
	if r == Recognized {
		return "recognized"
	}
	return "unrecognized"
}

// Classification is the result of classifying one column header. Fallback is
// set when neither marker phrase matched and the action was guessed.
type Classification struct {
	Status   Recognition
	Action   models.Action
	Category string
	Fallback bool
}

// Classifier maps raw spreadsheet headers to (action, category) pairs.
type Classifier struct {
	instruments models.InstrumentTable
}

func NewClassifier(instruments models.InstrumentTable) *Classifier {
	return &Classifier{instruments: instruments}
}

// Classify never fails. Labels that match no marker default to a sale and take
// the text after the last hyphen as category; they come back Unrecognized
// only when that category is not a known instrument.
func (c *Classifier) Classify(label string) Classification {
	base := stripBoilerplate(CleanLabel(label))

	var cl Classification
	switch {
	case strings.Contains(base, saleMarker):
		cl.Action = models.ActionSale
		cl.Category = afterMarker(base, saleMarker)
	case strings.Contains(base, redemptionMarker):
		cl.Action = models.ActionRedemption
		cl.Category = afterMarker(base, redemptionMarker)
	default:
		cl.Fallback = true
		cl.Action = models.ActionSale
		if !strings.Contains(base, "Vendas") && strings.Contains(base, "Resgates") {
			cl.Action = models.ActionRedemption
		}
		cl.Category = strings.TrimSpace(base[strings.LastIndex(base, "-")+1:])
	}

	if _, ok := c.instruments.ByName(cl.Category); ok {
		cl.Status = Recognized
	}
	return cl
}

// CleanLabel collapses whitespace runs, non-breaking spaces included, into
// single spaces and trims.
func CleanLabel(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

func stripBoilerplate(s string) string {
	s = seriesPrefix.ReplaceAllString(s, "")
	for _, re := range metadataSuffixes {
		s = re.ReplaceAllString(s, "")
	}
	s = strings.ReplaceAll(s, "Fonte: Tesouro Nacional", "")
	return strings.TrimSpace(s)
}

func afterMarker(s, marker string) string {
	_, rest, _ := strings.Cut(s, marker)
	return strings.TrimSpace(rest)
}
