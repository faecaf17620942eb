package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/episode"
	cgmqhttp "devicecgm/cgmq/pkg/http"
	"devicecgm/cgmq/pkg/query"

	"go.uber.org/zap"
)

const patientsEndpoint = "patients"

// Client queries a remote cgmq server and answers the same calls as a local
// query.Engine.
type Client struct {
	client  *http.Client
	logger  *zap.Logger
	baseURL string
}

// StatusError is returned for any response other than 200 or 204.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

func New(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		client:  &http.Client{},
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) Patients(ctx context.Context) ([]int, error) {
	var resp cgmqhttp.PatientsResponse
	if _, err := c.get(ctx, patientsEndpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("unable to list patients: %w", err)
	}
	return resp.Patients, nil
}

func (c *Client) MinMaxMedian(ctx context.Context, patientID int, iv *defs.Interval) (*defs.StatSummary, error) {
	params, ok := intervalParams(iv)
	if !ok {
		return nil, nil
	}
	var ss defs.StatSummary
	status, err := c.get(ctx, patientPath(patientID, "summary"), params, &ss)
	if err != nil {
		return nil, fmt.Errorf("unable to read summary: %w", err)
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &ss, nil
}

func (c *Client) OrderedMeasurements(ctx context.Context, patientID int, iv *defs.Interval) ([]defs.Measurement, error) {
	ms := make([]defs.Measurement, 0)
	params, ok := intervalParams(iv)
	if !ok {
		return ms, nil
	}
	if _, err := c.get(ctx, patientPath(patientID, "measurements"), params, &ms); err != nil {
		return nil, fmt.Errorf("unable to read measurements: %w", err)
	}
	return ms, nil
}

func (c *Client) HypoEventsCount(ctx context.Context, patientID int, iv *defs.Interval) (int, error) {
	resp, err := c.hypo(ctx, patientID, iv)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) HypoEpisodes(ctx context.Context, patientID int, iv *defs.Interval) ([]episode.Episode, error) {
	resp, err := c.hypo(ctx, patientID, iv)
	if err != nil {
		return nil, err
	}
	if resp.Episodes == nil {
		return []episode.Episode{}, nil
	}
	return resp.Episodes, nil
}

func (c *Client) Report(ctx context.Context, patientID int, iv *defs.Interval, low, high float64) (*query.Report, error) {
	params, ok := intervalParams(iv)
	if !ok {
		return &query.Report{PatientID: patientID, Episodes: []episode.Episode{}}, nil
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("low", strconv.FormatFloat(low, 'f', -1, 64))
	params.Set("high", strconv.FormatFloat(high, 'f', -1, 64))

	var r query.Report
	if _, err := c.get(ctx, patientPath(patientID, "report"), params, &r); err != nil {
		return nil, fmt.Errorf("unable to read report: %w", err)
	}
	return &r, nil
}

func (c *Client) hypo(ctx context.Context, patientID int, iv *defs.Interval) (*cgmqhttp.HypoResponse, error) {
	var resp cgmqhttp.HypoResponse
	params, ok := intervalParams(iv)
	if !ok {
		return &resp, nil
	}
	if _, err := c.get(ctx, patientPath(patientID, "hypo"), params, &resp); err != nil {
		return nil, fmt.Errorf("unable to read hypo episodes: %w", err)
	}
	return &resp, nil
}

// get decodes a 200 response into out. A 204 leaves out untouched.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) (int, error) {
	target := c.baseURL + "/" + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	c.logger.Debug("making query request", zap.String("url", target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.logger.Debug("failed to decode query response", zap.String("url", target), zap.Error(err))
			return resp.StatusCode, err
		}
		return resp.StatusCode, nil
	case http.StatusNoContent:
		return resp.StatusCode, nil
	default:
		var er cgmqhttp.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return resp.StatusCode, &StatusError{Code: resp.StatusCode, Message: er.Error}
	}
}

func patientPath(patientID int, resource string) string {
	return patientsEndpoint + "/" + strconv.Itoa(patientID) + "/" + resource
}

// intervalParams encodes iv as whole unix seconds. The server only takes
// seconds, so start is rounded up and end down to keep the remote window
// inside iv. ok is false when no whole second falls inside iv.
func intervalParams(iv *defs.Interval) (params url.Values, ok bool) {
	if iv == nil {
		return nil, true
	}
	start := iv.Start.Truncate(time.Second)
	if start.Before(iv.Start) {
		start = start.Add(time.Second)
	}
	end := iv.End.Truncate(time.Second)
	if end.Before(start) {
		return nil, false
	}
	return url.Values{
		"start": {strconv.FormatInt(start.Unix(), 10)},
		"end":   {strconv.FormatInt(end.Unix(), 10)},
	}, true
}
