package ingest

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

// Stats aggregates one run. Counts read back from the store are only set on DONE.
type Stats struct {
	RunID   string
	State   State
	Archive string

	ArchivesFound   int
	ArchivesSkipped int
	ArchivesFailed  int

	MerchantsUpserted     int
	ListingFilesProcessed int
	RowsStaged            int
	Rejections            models.Rejections
	RowsCompacted         int64

	MerchantCount int64
	ListingCount  int64

	Duration time.Duration
}

func newStats(runID, archive string) *Stats {
	return &Stats{
		RunID:      runID,
		State:      StateInit,
		Archive:    archive,
		Rejections: make(models.Rejections),
	}
}

// WriteSummary prints the human-readable run summary.
func (s *Stats) WriteSummary(w io.Writer) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Import %s (run %s)\n", strings.ToLower(string(s.State)), s.RunID)
	fmt.Fprintf(w, "  - Merchant archives processed: %d (skipped %d, failed %d)\n", s.ListingFilesProcessed, s.ArchivesSkipped, s.ArchivesFailed)
	fmt.Fprintf(w, "  - Merchant rows upserted: %d\n", s.MerchantsUpserted)
	fmt.Fprintf(w, "  - Listings staged: %d\n", s.RowsStaged)
	fmt.Fprintf(w, "  - Listings moved to final storage: %d\n", s.RowsCompacted)
	if s.State == StateDone {
		fmt.Fprintf(w, "  - Unique merchants (id_comercio, id_bandera): %d\n", s.MerchantCount)
		fmt.Fprintf(w, "  - Listings in store: %d\n", s.ListingCount)
	}
	if total := s.Rejections.Total(); total > 0 {
		fmt.Fprintf(w, "  - Rejected rows: %d\n", total)
		for _, reason := range models.RejectReasons {
			if n := s.Rejections[reason]; n > 0 {
				fmt.Fprintf(w, "      %s: %d\n", reason, n)
			}
		}
	}
	fmt.Fprintf(w, "  - Duration: %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, rule)
}
