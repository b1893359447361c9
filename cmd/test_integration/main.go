package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Smoke test against a running server. The server must be able to reach a
// model provider for the batch steps to succeed.
func main() {
	baseURL := os.Getenv("GENAI_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	modelName := os.Getenv("SMOKE_MODEL")
	if modelName == "" {
		modelName = "GPT-4O-MINI"
	}
	c := &client{base: baseURL, http: &http.Client{Timeout: 10 * time.Minute}}

	fmt.Println("Starting smoke test against", baseURL)

	step("Health check")
	c.must("GET", "/healthz", nil, http.StatusOK, nil)

	step("Create model configuration")
	var mc struct {
		ID int64 `json:"id"`
	}
	c.must("POST", "/api/model-configurations", map[string]any{
		"model":   map[string]any{"modelName": modelName, "modelProvider": os.Getenv("SMOKE_PROVIDER")},
		"comment": "smoke test",
	}, http.StatusCreated, &mc)

	step("Create items")
	var itemIDs []int64
	for _, it := range []map[string]any{
		{"name": "Frankenstein", "type": "book", "attributes": map[string]any{"author": "Mary Shelley", "year": 1818}},
		{"name": "Dracula", "type": "book", "attributes": map[string]any{"author": "Bram Stoker", "year": 1897}},
		{"name": "The Strange Case of Dr Jekyll and Mr Hyde", "type": "book", "attributes": map[string]any{"author": "Robert Louis Stevenson"}},
	} {
		var e struct {
			ID int64 `json:"id"`
		}
		c.must("POST", "/api/items", it, http.StatusCreated, &e)
		itemIDs = append(itemIDs, e.ID)
	}

	step("Create collection")
	var coll struct {
		ID int64 `json:"id"`
	}
	c.must("POST", "/api/collections", map[string]any{
		"name":        fmt.Sprintf("Gothic %d", time.Now().Unix()),
		"description": "Nineteenth century gothic fiction",
		"itemIds":     itemIDs,
	}, http.StatusCreated, &coll)

	step("Summarize collection members")
	var summary struct {
		BatchID      int64 `json:"batchId"`
		SuccessCount int   `json:"successCount"`
		FailureCount int   `json:"failureCount"`
	}
	c.must("POST", fmt.Sprintf("/api/batch-summary/collection/%d", coll.ID), map[string]any{
		"modelConfigurationId": mc.ID,
	}, http.StatusOK, &summary)
	if summary.SuccessCount+summary.FailureCount != len(itemIDs) {
		fail("batch counts do not add up: %+v", summary)
	}

	step("Scan relationships")
	var scan struct {
		PairsEvaluated int `json:"pairsEvaluated"`
	}
	c.must("POST", "/api/relationships/scan", map[string]any{
		"collectionId":         coll.ID,
		"modelConfigurationId": mc.ID,
	}, http.StatusOK, &scan)
	if want := len(itemIDs) * (len(itemIDs) - 1) / 2; scan.PairsEvaluated != want {
		fail("expected %d pairs, got %d", want, scan.PairsEvaluated)
	}

	step("Group related items")
	c.must("POST", "/api/operations/execute", map[string]any{
		"operationId":  "group_related",
		"collectionId": coll.ID,
	}, http.StatusOK, nil)

	step("Read back model calls")
	c.must("GET", fmt.Sprintf("/api/model-calls?batchId=%d", summary.BatchID), nil, http.StatusOK, nil)

	fmt.Println("PASSED")
}

type client struct {
	base string
	http *http.Client
}

func (c *client) must(method, endpoint string, payload any, wantStatus int, out any) {
	var body io.Reader
	if payload != nil {
		jsonBytes, err := json.Marshal(payload)
		if err != nil {
			fail("encode request: %v", err)
		}
		body = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequest(method, c.base+endpoint, body)
	if err != nil {
		fail("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		fail("%s %s: %v", method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		fail("%s %s returned %d: %s", method, endpoint, resp.StatusCode, respBody)
	}
	fmt.Printf("  %s\n", respBody)

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			fail("decode %s response: %v", endpoint, err)
		}
	}
}

func step(name string) {
	fmt.Println("==>", name)
}

func fail(format string, args ...any) {
	fmt.Printf("FAILED: "+format+"\n", args...)
	os.Exit(1)
}
