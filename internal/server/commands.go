package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// CommandGateway accepts operation submissions over HTTP and forwards them to
// the inbound JetStream subjects. The HTTP layer never touches the engine:
// 202 means durably queued, not applied. Callers poll the query API with the
// returned request_id to observe the outcome.
type CommandGateway struct {
	js jetstream.JetStream
}

func NewCommandGateway(js jetstream.JetStream) *CommandGateway {
	return &CommandGateway{js: js}
}

// commandRoute binds an HTTP path suffix to its inbound subject.
var commandRoutes = map[string]string{
	"reserve-deposit":     "debt.reserve.deposit.http",
	"reserve-withdraw":    "debt.reserve.withdraw.http",
	"open":                "debt.positions.open.http",
	"add-collateral":      "debt.positions.add.http",
	"repay":               "debt.positions.repay.http",
	"withdraw-collateral": "debt.positions.withdraw.collateral.http",
	"withdraw-debt":       "debt.positions.withdraw.debt.http",
	"close":               "debt.positions.close.http",
	"transfer":            "debt.positions.transfer.http",
	"capitalize":          "debt.capitalize.partial.http",
	"capitalize-max":      "debt.capitalize.max.http",
	"collapse":            "debt.capitalize.collapse.http",
	"accrue-reward":       "debt.rewards.accrue.http",
	"withdraw-fees":       "debt.rewards.withdraw.http",
	"params":              "debt.params.http",
}

type commandAccepted struct {
	RequestID string `json:"request_id"`
	Subject   string `json:"subject"`
}

// Submit handles POST /v1/commands/{command}. The body is the same
// snake_case wire format the NATS producers use. A missing request_id or
// timestamp_us is filled in before publishing.
func (g *CommandGateway) Submit(w http.ResponseWriter, r *http.Request, command string) {
	subject, ok := commandRoutes[command]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown command %q", command))
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	requestID, err := ensureRequestID(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := body["timestamp_us"]; !ok {
		body["timestamp_us"] = time.Now().UnixMicro()
	}

	data, err := json.Marshal(body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "marshal command")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := g.js.Publish(ctx, subject, data); err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("queue unavailable: %v", err))
		return
	}

	writeJSON(w, http.StatusAccepted, commandAccepted{
		RequestID: requestID,
		Subject:   subject,
	})
}

// ensureRequestID validates or generates the idempotency key. Reserve moves
// name theirs transfer_id; everything else uses request_id.
func ensureRequestID(body map[string]interface{}) (string, error) {
	for _, field := range []string{"request_id", "transfer_id"} {
		if raw, ok := body[field]; ok {
			s, ok := raw.(string)
			if !ok {
				return "", fmt.Errorf("%s must be a string", field)
			}
			if _, err := uuid.Parse(s); err != nil {
				return "", fmt.Errorf("%s is not a valid UUID", field)
			}
			return s, nil
		}
	}

	id := uuid.New().String()
	if _, ok := body["holder_id"]; ok {
		body["transfer_id"] = id
	} else {
		body["request_id"] = id
	}
	return id, nil
}
