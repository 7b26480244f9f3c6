// Command ruleenginectl is a thin HTTP client over the rule engine's admin
// surface. It is NOT part of the core engine: every subcommand just shapes
// a request, prints the response, and maps a non-2xx status to a non-zero
// exit code.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	baseURL := flag.NewFlagSet("", flag.ContinueOnError).String("base-url", envOr("RULEENGINECTL_BASE_URL", "http://localhost:12011"), "rule engine admin base URL")

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "add-rule":
		err = addRule(*baseURL, args)
	case "delete-rule":
		err = deleteRule(*baseURL, args)
	case "enable-rule":
		err = enableRule(*baseURL, args)
	case "disable-rule":
		err = disableRule(*baseURL, args)
	case "get-rule":
		err = getRule(*baseURL, args)
	case "get-rule-list":
		err = getRuleList(*baseURL, args)
	case "execute-rule":
		err = executeRule(*baseURL, args)
	case "post-application-data":
		err = postApplicationData(*baseURL, args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ruleenginectl <command> [args]

commands:
  add-rule <rule.xml>
  delete-rule <app> <name>
  enable-rule <app> <name>
  disable-rule <app> <name>
  get-rule <app> <name>
  get-rule-list
  execute-rule <app> <name> [data-file]
  post-application-data <app> <data-file>`)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func addRule(baseURL string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("add-rule requires a rule XML file path")
	}
	body, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	return doRequest(http.MethodPost, baseURL+"/v1/rules", bytes.NewReader(body), "application/xml")
}

func deleteRule(baseURL string, args []string) error {
	app, name, err := twoArgs("delete-rule", args)
	if err != nil {
		return err
	}
	return doRequest(http.MethodDelete, fmt.Sprintf("%s/v1/rules/%s/%s", baseURL, app, name), nil, "")
}

func enableRule(baseURL string, args []string) error {
	app, name, err := twoArgs("enable-rule", args)
	if err != nil {
		return err
	}
	return doRequest(http.MethodPost, fmt.Sprintf("%s/v1/rules/%s/%s/enable", baseURL, app, name), nil, "")
}

func disableRule(baseURL string, args []string) error {
	app, name, err := twoArgs("disable-rule", args)
	if err != nil {
		return err
	}
	return doRequest(http.MethodPost, fmt.Sprintf("%s/v1/rules/%s/%s/disable", baseURL, app, name), nil, "")
}

func getRule(baseURL string, args []string) error {
	app, name, err := twoArgs("get-rule", args)
	if err != nil {
		return err
	}
	return doRequest(http.MethodGet, fmt.Sprintf("%s/v1/rules/%s/%s", baseURL, app, name), nil, "")
}

func getRuleList(baseURL string, args []string) error {
	return doRequest(http.MethodGet, baseURL+"/v1/rules", nil, "")
}

func executeRule(baseURL string, args []string) error {
	if len(args) != 2 && len(args) != 3 {
		return fmt.Errorf("execute-rule requires <app> <name> [data-file]")
	}
	app, name := args[0], args[1]
	var body io.Reader
	contentType := ""
	if len(args) == 3 {
		payload, err := buildDataPayload(args[2])
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return doRequest(http.MethodPost, fmt.Sprintf("%s/v1/rules/%s/%s/execute", baseURL, app, name), body, contentType)
}

func postApplicationData(baseURL string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("post-application-data requires <app> <data-file>")
	}
	app, file := args[0], args[1]
	payload, err := buildDataPayload(file)
	if err != nil {
		return err
	}
	return doRequest(http.MethodPost, fmt.Sprintf("%s/v1/applications/%s/data", baseURL, app), bytes.NewReader(payload), "application/json")
}

// buildDataPayload reads raw XML and wraps it in the double base64-encoded
// {"data": "..."} envelope the ingest endpoint expects.
func buildDataPayload(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	once := base64.StdEncoding.EncodeToString(raw)
	twice := base64.StdEncoding.EncodeToString([]byte(once))
	return json.Marshal(map[string]string{"data": twice})
}

func twoArgs(cmd string, args []string) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("%s requires <app> <name>", cmd)
	}
	return args[0], args[1], nil
}

func doRequest(method, url string, body io.Reader, contentType string) error {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	fmt.Println(strings.TrimSpace(string(respBody)))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}
