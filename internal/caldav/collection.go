package caldav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/illixion/CalendarTransformer/internal/ics"
	appLog "github.com/illixion/CalendarTransformer/internal/log"
	"github.com/illixion/CalendarTransformer/internal/model"
)

// Collection is one calendar collection on the server.
type Collection struct {
	client *Client
	name   string
	href   string
}

// Name returns the collection's display name.
func (col *Collection) Name() string { return col.name }

const queryTemplate = `<?xml version="1.0" encoding="utf-8"?>
<c:calendar-query xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:getetag/>
    <c:calendar-data/>
  </d:prop>
  <c:filter>
    <c:comp-filter name="VCALENDAR">
      <c:comp-filter name="VEVENT">%s</c:comp-filter>
    </c:comp-filter>
  </c:filter>
</c:calendar-query>`

// Events fetches the collection's events intersecting the window via a
// calendar-query REPORT and normalizes them into records (recurrences
// expanded, timestamps in UTC). An unbounded window omits the time-range
// filter. Objects that fail to parse are logged and skipped.
func (col *Collection) Events(ctx context.Context, win model.Window) ([]model.Record, error) {
	timeRange := ""
	if win.Bounded() {
		const stamp = "20060102T150405Z"
		start, end := win.Start, win.End
		if start.IsZero() {
			start = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
		}
		if end.IsZero() {
			end = start.AddDate(50, 0, 0)
		}
		timeRange = fmt.Sprintf(`<c:time-range start=%q end=%q/>`,
			start.UTC().Format(stamp), end.UTC().Format(stamp))
	}

	req, err := col.client.newRequest(ctx, "REPORT", col.href, fmt.Sprintf(queryTemplate, timeRange))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", "1")

	ms, err := col.client.doMultistatus(req)
	if err != nil {
		return nil, fmt.Errorf("caldav: query %s: %w", col.name, err)
	}

	records := make([]model.Record, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		var data string
		for _, ps := range resp.Propstats {
			if ps.Prop.CalendarData != "" {
				data = ps.Prop.CalendarData
			}
		}
		if data == "" {
			continue
		}

		parsed, err := ics.ParseObject(col.name, []byte(data))
		if err != nil {
			appLog.Error("calendar object parse failed, skipping", err,
				"collection", col.name, "href", resp.Href)
			continue
		}
		for _, rec := range ics.Expand(parsed, win) {
			rec.Ref = resp.Href
			records = append(records, rec)
		}
	}

	appLog.Info("caldav query completed", "collection", col.name,
		"server", redactURL(col.client.base), "record_count", len(records))
	return records, nil
}

// Append PUTs a new calendar object under a fresh name. If-None-Match
// guards against overwriting an existing object.
func (col *Collection) Append(ctx context.Context, body string) error {
	objPath := path.Join(col.href, uuid.NewString()+".ics")
	req, err := col.client.newRequest(ctx, http.MethodPut, objPath, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", `text/calendar; charset="utf-8"`)
	req.Header.Set("If-None-Match", "*")

	resp, err := col.client.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("caldav: put %s: %s", col.name, resp.Status)
	}
	return nil
}

// Remove deletes the object the record was read from.
func (col *Collection) Remove(ctx context.Context, rec model.Record) error {
	if rec.Ref == "" {
		return errors.New("caldav: record has no object reference")
	}
	req, err := col.client.newRequest(ctx, http.MethodDelete, rec.Ref, "")
	if err != nil {
		return err
	}

	resp, err := col.client.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("caldav: delete %s: %s", col.name, resp.Status)
	}
	return nil
}
