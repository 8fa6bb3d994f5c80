package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"attention-engine/pkg/circuitbreaker"
	"attention-engine/pkg/metrics"
	"attention-engine/pkg/trace"
)

// HaikuClient calls the semantic classifier service over HTTP. One
// shot per email, hard timeout, circuit breaker so a provider outage
// fails fast instead of stalling a whole analysis batch.
type HaikuClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

func NewHaikuClient(baseURL string) *HaikuClient {
	cbConfig := circuitbreaker.Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 2,
	}

	return &HaikuClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second, // 避免分析批次卡死
		},
		cb: circuitbreaker.NewCircuitBreaker(cbConfig),
	}
}

func (c *HaikuClient) ClassifySemantic(ctx context.Context, in SemanticInput) (*SemanticResult, error) {
	var result *SemanticResult

	err := c.cb.Execute(func() error {
		start := time.Now()
		b, marshalErr := json.Marshal(in)
		if marshalErr != nil {
			return marshalErr
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(b))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		if traceID := trace.FromContext(ctx); traceID != "" {
			req.Header.Set(trace.HeaderName(), traceID)
		}

		resp, doErr := c.httpClient.Do(req)
		latency := time.Since(start)

		if doErr != nil {
			metrics.RecordHaikuCallLatency("error", latency)
			return doErr
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			metrics.RecordHaikuCallLatency("5xx", latency)
			return fmt.Errorf("semantic classifier 5xx: %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.RecordHaikuCallLatency(fmt.Sprintf("%d", resp.StatusCode), latency)
			return fmt.Errorf("semantic classifier error: %d", resp.StatusCode)
		}

		metrics.RecordHaikuCallLatency("success", latency)
		var decoded SemanticResult
		if decodeErr := json.NewDecoder(resp.Body).Decode(&decoded); decodeErr != nil {
			return decodeErr
		}
		result = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
