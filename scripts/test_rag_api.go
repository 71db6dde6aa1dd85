package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:8000/api"

const sampleDocument = `Retrieval augmented generation grounds a language model in an
external knowledge base. The index is built by chunking documents, embedding each
chunk and storing the vectors. At query time the question is embedded, similar
chunks are retrieved and the model answers from them. Hybrid retrieval combines
vector similarity with BM25 keyword scores.`

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, url string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{} // No timeout, index builds run long
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

func mustSucceed(resp *http.Response, body []byte, err error) map[string]interface{} {
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var payload map[string]interface{}
	json.Unmarshal(body, &payload)
	prettyPrint(payload)
	return payload
}

func main() {
	color.Cyan("🚀 Starting RAG API Smoke Test\n")

	// 1. Status before anything else
	color.Yellow("\n1. Get Knowledge Base Status")
	mustSucceed(sendRequest("GET", "/status", nil))

	// 2. Upload a sample document
	color.Yellow("\n2. Upload Sample Document")
	uploadSample()

	// 3. Trigger the index build
	color.Yellow("\n3. Trigger Index Build")
	mustSucceed(sendRequest("POST", "/build-start", nil))

	// 4. Poll progress until the worker is done
	color.Yellow("\n4. Poll Build Progress")
	waitForBuild()

	// 5. List indexed documents
	color.Yellow("\n5. List Indexed Documents")
	mustSucceed(sendRequest("GET", "/documents", nil))

	// 6. Ask a question
	color.Yellow("\n6. Query the Knowledge Base")
	queryReq := map[string]interface{}{
		"question": "How is a RAG index built?",
		"top_k":    3,
		"method":   "hybrid",
	}
	mustSucceed(sendRequest("POST", "/query", queryReq))

	// 7. Ask the same question over SSE
	color.Yellow("\n7. Query Again Over SSE")
	streamQuery(queryReq)

	// 8. Smart query (router decides rag vs agent)
	color.Yellow("\n8. Smart Query")
	smartReq := map[string]interface{}{
		"question": "Summarize how hybrid retrieval works",
	}
	mustSucceed(sendRequest("POST", "/agent/smart-query", smartReq))

	// 9. Stored conversations
	color.Yellow("\n9. List Conversations")
	mustSucceed(sendRequest("GET", "/conversations", nil))

	color.Cyan("\n✅ Smoke test finished")
}

func uploadSample() {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "rag_basics.md")
	if err != nil {
		color.Red("Failed to build upload: %v", err)
		os.Exit(1)
	}
	part.Write([]byte(sampleDocument))
	writer.Close()

	req, err := http.NewRequest("POST", baseURL+"/upload", body)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	color.Green("Status: %s", resp.Status)
	var payload map[string]interface{}
	json.Unmarshal(respBody, &payload)
	prettyPrint(payload)
}

func waitForBuild() {
	for i := 0; i < 120; i++ {
		_, body, err := sendRequest("GET", "/build-progress", nil)
		if err != nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}

		var progress map[string]interface{}
		json.Unmarshal(body, &progress)
		status, _ := progress["status"].(string)

		switch status {
		case "completed":
			color.Green("Build completed")
			prettyPrint(progress)
			return
		case "error":
			color.Red("Build failed: %v", progress["message"])
			os.Exit(1)
		default:
			fmt.Printf("  %v/%v %s\n", progress["progress"], progress["total"], status)
			time.Sleep(500 * time.Millisecond)
		}
	}
	color.Red("Build did not finish in time")
	os.Exit(1)
}

func streamQuery(payload map[string]interface{}) {
	jsonBody, _ := json.Marshal(payload)
	req, err := http.NewRequest("POST", baseURL+"/query-stream", bytes.NewBuffer(jsonBody))
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	color.Green("Status: %s", resp.Status)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		var event map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		switch event["type"] {
		case "content":
			fmt.Print(event["data"])
		case "sources":
			fmt.Printf("[sources] %v\n", event["data"])
		case "done":
			fmt.Println("\n[done]")
		case "error":
			color.Red("\n[error] %v", event["data"])
		default:
			fmt.Printf("[%v] %v\n", event["type"], event["data"])
		}
	}
}
