package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
)

const defaultAddr = "http://localhost:8000/api"

// Exit codes: 0 success, 1 bad flags or environment, 2 request failure.
const (
	exitUsage   = 1
	exitRequest = 2
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: ragctl [-addr URL] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  status                         Show whether the knowledge base is loaded")
	fmt.Fprintln(os.Stderr, "  build                          Trigger an index rebuild")
	fmt.Fprintln(os.Stderr, "  progress                       Show index build progress")
	fmt.Fprintln(os.Stderr, "  query -q <question> [flags]    Ask the knowledge base a question")
	fmt.Fprintln(os.Stderr, "  conversations                  List stored conversations")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "The API address can also be set via RAGCTL_ADDR.")
}

// call sends one API request and decodes the response into out when out is
// non-nil. Transport errors and non-2xx responses terminate the process with
// exitRequest. The raw body is returned for commands that print it verbatim.
func call(method, url string, body, out interface{}) []byte {
	var reqBody io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(exitRequest)
	}
	req.Header.Set("Content-Type", "application/json")

	// No client timeout; index builds and agent queries run long.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(exitRequest)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		color.Red("Failed reading response: %v", err)
		os.Exit(exitRequest)
	}
	if resp.StatusCode >= 400 {
		color.Red("Status: %s", resp.Status)
		fmt.Println(indentJSON(respBody))
		os.Exit(exitRequest)
	}
	if out != nil {
		json.Unmarshal(respBody, out)
	}
	return respBody
}

// indentJSON reformats a raw JSON body for the terminal; anything that is
// not JSON comes back unchanged.
func indentJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return buf.String()
}

func cmdStatus(addr string) {
	var status struct {
		VectorStoreLoaded bool `json:"vector_store_loaded"`
	}
	call("GET", addr+"/status", nil, &status)
	if status.VectorStoreLoaded {
		color.Green("Knowledge base: loaded")
	} else {
		color.Yellow("Knowledge base: not built")
	}
}

func cmdBuild(addr string) {
	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	call("POST", addr+"/build-start", nil, &result)
	if result.Success {
		color.Green("%s", result.Message)
	} else {
		color.Yellow("%s", result.Message)
	}
}

func cmdProgress(addr string) {
	raw := call("GET", addr+"/build-progress", nil, nil)
	fmt.Println(indentJSON(raw))
}

func cmdQuery(addr string, args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	question := fs.String("q", "", "question to ask (required)")
	topK := fs.Int("k", 0, "number of passages to retrieve (0 = server default)")
	method := fs.String("m", "", "retrieval method: vector or hybrid")
	provider := fs.String("p", "", "LLM provider override: openai, gemini, deepseek or ollama")
	fs.Parse(args)

	if strings.TrimSpace(*question) == "" {
		color.Red("query: -q <question> is required")
		fs.Usage()
		os.Exit(exitUsage)
	}

	req := map[string]interface{}{"question": *question}
	if *topK > 0 {
		req["top_k"] = *topK
	}
	if *method != "" {
		req["method"] = *method
	}
	if *provider != "" {
		req["provider"] = *provider
	}

	var result struct {
		Answer  string `json:"answer"`
		Sources []struct {
			Source  string `json:"source"`
			Preview string `json:"preview"`
		} `json:"sources"`
	}
	call("POST", addr+"/query", req, &result)

	fmt.Println(result.Answer)
	if len(result.Sources) > 0 {
		color.Cyan("\nSources:")
		for _, source := range result.Sources {
			fmt.Printf("  - %s\n", source.Source)
		}
	}
}

func cmdConversations(addr string) {
	var result struct {
		Conversations []struct {
			Id           string `json:"id"`
			Title        string `json:"title"`
			MessageCount int    `json:"message_count"`
		} `json:"conversations"`
	}
	call("GET", addr+"/conversations", nil, &result)

	if len(result.Conversations) == 0 {
		color.Yellow("No conversations stored")
		return
	}
	for _, conversation := range result.Conversations {
		fmt.Printf("%s  (%d messages)  %s\n",
			conversation.Id, conversation.MessageCount, conversation.Title)
	}
}

func main() {
	addrFlag := flag.String("addr", "", "API base address (default "+defaultAddr+")")
	flag.Usage = usage
	flag.Parse()

	addr := *addrFlag
	if addr == "" {
		addr = os.Getenv("RAGCTL_ADDR")
	}
	if addr == "" {
		addr = defaultAddr
	}
	addr = strings.TrimRight(addr, "/")

	if flag.NArg() < 1 {
		usage()
		os.Exit(exitUsage)
	}

	switch flag.Arg(0) {
	case "status":
		cmdStatus(addr)
	case "build":
		cmdBuild(addr)
	case "progress":
		cmdProgress(addr)
	case "query":
		cmdQuery(addr, flag.Args()[1:])
	case "conversations":
		cmdConversations(addr)
	default:
		color.Red("Unknown command: %s", flag.Arg(0))
		usage()
		os.Exit(exitUsage)
	}
}
