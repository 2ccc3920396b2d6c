package engine

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/namelens/repolens/internal/core"
)

// QuotaSource selects the channel quota telemetry is read from.
type QuotaSource string

const (
	QuotaSourceAuto    QuotaSource = "auto"
	QuotaSourceBody    QuotaSource = "body"
	QuotaSourceHeaders QuotaSource = "headers"
)

// ParseQuotaSource validates a configured quota source.
func ParseQuotaSource(value string) (QuotaSource, error) {
	switch QuotaSource(strings.ToLower(strings.TrimSpace(value))) {
	case "", QuotaSourceAuto:
		return QuotaSourceAuto, nil
	case QuotaSourceBody:
		return QuotaSourceBody, nil
	case QuotaSourceHeaders:
		return QuotaSourceHeaders, nil
	default:
		return "", fmt.Errorf("unsupported quota source: %s", value)
	}
}

type rateLimitBody struct {
	RateLimit *struct {
		Limit     int       `json:"limit"`
		Cost      int       `json:"cost"`
		Remaining int       `json:"remaining"`
		ResetAt   time.Time `json:"resetAt"`
	} `json:"rateLimit"`
}

func quotaFromBody(data json.RawMessage) (*core.QuotaSnapshot, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var body rateLimitBody
	if err := json.Unmarshal(data, &body); err != nil || body.RateLimit == nil {
		return nil, false
	}
	return &core.QuotaSnapshot{
		Limit:     body.RateLimit.Limit,
		Cost:      body.RateLimit.Cost,
		Remaining: body.RateLimit.Remaining,
		ResetAt:   body.RateLimit.ResetAt.UTC(),
	}, true
}

func quotaFromHeaders(header http.Header) (*core.QuotaSnapshot, bool) {
	rawRemaining := strings.TrimSpace(header.Get("X-RateLimit-Remaining"))
	if rawRemaining == "" {
		return nil, false
	}
	remaining, err := strconv.Atoi(rawRemaining)
	if err != nil {
		return nil, false
	}

	snapshot := &core.QuotaSnapshot{Remaining: remaining}
	if limit, err := strconv.Atoi(strings.TrimSpace(header.Get("X-RateLimit-Limit"))); err == nil {
		snapshot.Limit = limit
	}
	if reset, err := strconv.ParseInt(strings.TrimSpace(header.Get("X-RateLimit-Reset")), 10, 64); err == nil {
		snapshot.ResetAt = time.Unix(reset, 0).UTC()
	}
	return snapshot, true
}

func extractQuota(source QuotaSource, data json.RawMessage, header http.Header) *core.QuotaSnapshot {
	switch source {
	case QuotaSourceBody:
		snapshot, _ := quotaFromBody(data)
		return snapshot
	case QuotaSourceHeaders:
		snapshot, _ := quotaFromHeaders(header)
		return snapshot
	default:
		if snapshot, ok := quotaFromBody(data); ok {
			return snapshot
		}
		snapshot, _ := quotaFromHeaders(header)
		return snapshot
	}
}
