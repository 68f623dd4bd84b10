package fetcher

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/cache"
	"github.com/sells-group/statline/internal/model"
)

// InjuryColumns is the header of a parsed injury report: the id taken from
// the player link, then the page cells in order.
var InjuryColumns = []string{"player_id", "player", "team", "pos", "status", "injury", "practice_status"}

// minInjuryCells is the fewest cells a report row needs (player through
// injury). Practice status is optional.
const minInjuryCells = 5

// ErrNoInjuryTable is returned when the page has no injuries table.
var ErrNoInjuryTable = eris.New("injury table not found")

// FetchInjuries returns the current league injury report. The page is
// cached like any other download.
func (c *Client) FetchInjuries(ctx context.Context) (*model.RawBatch, error) {
	u := c.cfg.InjuriesURL
	if u == "" {
		return nil, eris.New("no injury report source configured")
	}
	return c.cached(ctx, cache.Key("injuries", u), func(ctx context.Context) (*model.RawBatch, error) {
		body, err := c.fetcher.Download(ctx, u)
		if err != nil {
			return nil, err
		}
		defer body.Close() //nolint:errcheck

		b, err := ParseInjuryReport(body)
		if err != nil {
			return nil, eris.Wrapf(err, "parse %s", u)
		}
		c.log.Info("downloaded injury report",
			zap.String("url", u),
			zap.Int("rows", b.Len()),
		)
		return b, nil
	})
}

// ParseInjuryReport reads the rows of the page's injuries table. Repeated
// header rows and rows with too few cells are skipped.
func ParseInjuryReport(r io.Reader) (*model.RawBatch, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "read html")
	}
	table := doc.Find("table#injuries").First()
	if table.Length() == 0 {
		return nil, ErrNoInjuryTable
	}

	b := &model.RawBatch{Format: model.FormatHTMLv1, Columns: InjuryColumns}
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.HasClass("thead") {
			return
		}
		cells := tr.Find("th, td")
		if cells.Length() < minInjuryCells {
			return
		}
		row := make([]string, len(InjuryColumns))
		row[0] = playerIDFromHref(cells.First().Find("a").AttrOr("href", ""))
		cells.EachWithBreak(func(i int, td *goquery.Selection) bool {
			if i+1 >= len(row) {
				return false
			}
			row[i+1] = strings.TrimSpace(td.Text())
			return true
		})
		b.Rows = append(b.Rows, row)
	})
	return b, nil
}

// playerIDFromHref turns "/players/A/AdamDa00.htm" into "AdamDa00".
func playerIDFromHref(href string) string {
	if !strings.Contains(href, "/players/") {
		return ""
	}
	return strings.TrimSuffix(path.Base(href), ".htm")
}
