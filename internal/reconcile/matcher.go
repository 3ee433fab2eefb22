package reconcile

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Score weights; they sum to one.
const (
	amountWeight = 0.5
	dateWeight   = 0.2
	textWeight   = 0.3

	// dateWindowDays is the distance at which the date component reaches zero.
	dateWindowDays = 30
)

// TargetKind names the record a bank transaction is matched to.
type TargetKind string

const (
	TargetInvoice TargetKind = "invoice"
	TargetExpense TargetKind = "expense"
)

// BankTransaction is an unreconciled bank statement line. Positive amounts are
// money in.
type BankTransaction struct {
	ID          int64     `json:"id"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Reference   string    `json:"reference"`
}

// Candidate is an open invoice or expense.
type Candidate struct {
	Kind   TargetKind `json:"kind"`
	ID     int64      `json:"id"`
	Date   time.Time  `json:"date"`
	Amount float64    `json:"amount"`
	Number string     `json:"number,omitempty"`
	Name   string     `json:"name"`
}

// Match is an accepted pairing with its score breakdown.
type Match struct {
	TransactionID int64      `json:"transactionId"`
	Kind          TargetKind `json:"kind"`
	TargetID      int64      `json:"targetId"`
	Score         float64    `json:"score"`
	AmountScore   float64    `json:"amountScore"`
	DateScore     float64    `json:"dateScore"`
	TextScore     float64    `json:"textScore"`

	dateDelta   float64
	amountDelta float64
}

// AmountScore is 1 - |a-b| / max(|a|,|b|), floored at zero.
func AmountScore(a, b float64) float64 {
	a, b = math.Abs(a), math.Abs(b)
	denom := math.Max(a, b)
	if denom == 0 {
		return 1
	}
	return math.Max(0, 1-math.Abs(a-b)/denom)
}

// DateScore decays linearly from 1 on the same day to 0 at thirty days apart.
func DateScore(a, b time.Time) float64 {
	return math.Max(0, 1-dayDistance(a, b)/dateWindowDays)
}

func dayDistance(a, b time.Time) float64 {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return math.Abs(da.Sub(db).Hours() / 24)
}

// TextScore is 1 when the description quotes the document number, otherwise the
// Jaccard similarity of the normalised word sets of description and name.
func TextScore(description, number, name string) float64 {
	desc := normalise(description)
	if num := normalise(number); num != "" {
		if quotesNumber(strings.Fields(desc), compact(num)) {
			return 1
		}
	}
	return jaccard(tokens(desc), tokens(normalise(name)))
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// normalise folds accents, lower-cases and replaces punctuation with spaces.
func normalise(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, stripMarks, norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

// quotesNumber reports whether consecutive words join into exactly num, so
// "inv 0010" and "inv0010" both quote INV-0010 while "inv 10" never quotes INV-1.
func quotesNumber(words []string, num string) bool {
	for i := range words {
		joined := ""
		for _, w := range words[i:] {
			joined += w
			if len(joined) >= len(num) {
				break
			}
		}
		if joined == num {
			return true
		}
	}
	return false
}

func compact(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.Fields(s) {
		out[f] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// Score combines the three components for a transaction and candidate.
func Score(txn BankTransaction, cand Candidate) Match {
	m := Match{
		TransactionID: txn.ID,
		Kind:          cand.Kind,
		TargetID:      cand.ID,
		AmountScore:   AmountScore(txn.Amount, cand.Amount),
		DateScore:     DateScore(txn.Date, cand.Date),
		TextScore:     TextScore(txn.Description+" "+txn.Reference, cand.Number, cand.Name),
		dateDelta:     dayDistance(txn.Date, cand.Date),
		amountDelta:   math.Abs(math.Abs(txn.Amount) - math.Abs(cand.Amount)),
	}
	m.Score = amountWeight*m.AmountScore + dateWeight*m.DateScore + textWeight*m.TextScore
	return m
}

// Assign pairs money-in transactions with invoices and money-out transactions with
// expenses. Pairs scoring at least threshold are taken best first; ties go to the
// closer date, then the smaller amount difference. Each transaction and each
// candidate is used at most once.
func Assign(txns []BankTransaction, invoices, expenses []Candidate, threshold float64) []Match {
	var pairs []Match
	for _, txn := range txns {
		pool := invoices
		if txn.Amount < 0 {
			pool = expenses
		}
		if txn.Amount == 0 {
			continue
		}
		for _, cand := range pool {
			if m := Score(txn, cand); m.Score >= threshold {
				pairs = append(pairs, m)
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		switch {
		case a.Score != b.Score:
			return a.Score > b.Score
		case a.dateDelta != b.dateDelta:
			return a.dateDelta < b.dateDelta
		case a.amountDelta != b.amountDelta:
			return a.amountDelta < b.amountDelta
		case a.TransactionID != b.TransactionID:
			return a.TransactionID < b.TransactionID
		default:
			return a.TargetID < b.TargetID
		}
	})

	usedTxn := make(map[int64]bool)
	usedTarget := make(map[TargetKind]map[int64]bool)
	var out []Match
	for _, m := range pairs {
		if usedTxn[m.TransactionID] || usedTarget[m.Kind][m.TargetID] {
			continue
		}
		usedTxn[m.TransactionID] = true
		if usedTarget[m.Kind] == nil {
			usedTarget[m.Kind] = make(map[int64]bool)
		}
		usedTarget[m.Kind][m.TargetID] = true
		out = append(out, m)
	}
	return out
}
