// push-simulator sends fake provider notification batches at a local
// pushgate instance: the validation handshake, single notifications, and
// multi-envelope batches with duplicate deliveries. Useful for exercising the
// ingress and dedup paths without a real provider subscription.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"
)

type resourceData struct {
	ID string `json:"id"`
}

type notification struct {
	SubscriptionID string       `json:"subscriptionId"`
	ChangeType     string       `json:"changeType"`
	Resource       string       `json:"resource,omitempty"`
	ClientState    string       `json:"clientState,omitempty"`
	ResourceData   resourceData `json:"resourceData"`
}

type batch struct {
	Value []notification `json:"value"`
}

func main() {
	target := flag.String("target", "http://localhost:8080", "pushgate base URL")
	subscription := flag.String("subscription", "sim-sub-1", "subscription id to stamp on notifications")
	clientState := flag.String("state", "", "clientState secret to include")
	changeType := flag.String("change", "created", "changeType for the notifications")
	resource := flag.String("resource", "msg-1", "resource id for the notifications")
	count := flag.Int("count", 1, "number of notifications in the batch")
	duplicate := flag.Bool("duplicate", false, "send the same batch twice to exercise dedup")
	handshake := flag.Bool("handshake", false, "run the validation handshake instead of sending a batch")
	session := flag.String("session", "", "testSessionId to address the batch at")
	flag.Parse()

	if *handshake {
		if err := runHandshake(*target); err != nil {
			log.Fatalf("handshake: %v", err)
		}
		return
	}

	b := batch{}
	for i := 0; i < *count; i++ {
		id := *resource
		if *count > 1 {
			id = fmt.Sprintf("%s-%d", *resource, i)
		}
		b.Value = append(b.Value, notification{
			SubscriptionID: *subscription,
			ChangeType:     *changeType,
			ClientState:    *clientState,
			ResourceData:   resourceData{ID: id},
		})
	}

	sends := 1
	if *duplicate {
		sends = 2
	}
	for i := 0; i < sends; i++ {
		if err := sendBatch(*target, *session, b); err != nil {
			log.Printf("send %d: %v", i+1, err)
			os.Exit(1)
		}
	}
}

func runHandshake(target string) error {
	token := fmt.Sprintf("sim-token-%d", time.Now().UnixNano())
	u := target + "/notifications?validationToken=" + url.QueryEscape(token)

	resp, err := http.Post(u, "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	if string(body) != token {
		return fmt.Errorf("token not echoed verbatim: sent %q, got %q", token, body)
	}
	log.Printf("handshake ok: token echoed in %s", resp.Header.Get("Content-Type"))
	return nil
}

func sendBatch(target, session string, b batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}

	u := target + "/notifications"
	if session != "" {
		u += "?testSessionId=" + url.QueryEscape(session)
	}

	resp, err := http.Post(u, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	log.Printf("sent %d notification(s): status=%d body=%s", len(b.Value), resp.StatusCode, bytes.TrimSpace(body))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway rejected batch with status %d", resp.StatusCode)
	}
	return nil
}
