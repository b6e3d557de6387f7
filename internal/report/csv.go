package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/FranksOps/landscape/internal/storage"
)

// csvHeaders defines the CSV column order.
var csvHeaders = []string{
	"id",
	"problem_id",
	"position",
	"name",
	"url",
	"rating",
	"rating_label",
	"previous_rating",
	"rating_change",
	"is_new",
	"first_seen_at",
	"last_seen_at",
	"description",
}

// WriteCSV writes one row per competitor, header first. previous_rating is
// empty for a competitor seen for the first time.
func WriteCSV(w io.Writer, records []*storage.CompetitorRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range records {
		prev := ""
		if r.PreviousRating != nil {
			prev = strconv.Itoa(*r.PreviousRating)
		}
		row := []string{
			r.ID,
			r.ProblemID,
			strconv.Itoa(r.Position),
			r.Name,
			r.URL,
			strconv.Itoa(r.Rating),
			r.RatingLabel,
			prev,
			strconv.Itoa(r.RatingChange),
			strconv.FormatBool(r.IsNew),
			formatTime(r.FirstSeenAt),
			formatTime(r.LastSeenAt),
			r.Description,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
