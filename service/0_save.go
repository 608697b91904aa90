package service

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/fulldump/apitest"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Save writes the request and response as a markdown example into
// API_EXAMPLES_PATH. Nothing is written when the variable is empty.
func Save(response *apitest.Response, title, description string) {
	examplesPath := os.Getenv("API_EXAMPLES_PATH")
	if examplesPath == "" {
		return
	}

	request := response.Request
	query := ""
	if request.URL.RawQuery != "" {
		query = "?" + request.URL.RawQuery
	}
	requestBody := formatJSON(response.BodyRequestString())

	s := &strings.Builder{}
	fmt.Fprintf(s, "# %s\n%s\n", title, strings.TrimSpace(description))

	fmt.Fprintf(s, "Curl example:\n\n```sh\ncurl")
	if request.Method != "GET" {
		fmt.Fprintf(s, " -X %s", request.Method)
	}
	fmt.Fprintf(s, " \"https://example.com%s%s\"", request.URL.Path, query)
	for _, k := range sortedKeys(request.Header) {
		for _, v := range request.Header[k] {
			fmt.Fprintf(s, " \\\n-H \"%s: %s\"", k, v)
		}
	}
	if requestBody != "" {
		fmt.Fprintf(s, " \\\n-d '%s'", requestBody)
	}
	fmt.Fprintf(s, "\n```\n\n\n")

	fmt.Fprintf(s, "HTTP request/response example:\n\n```http\n")
	fmt.Fprintf(s, "%s %s%s %s\nHost: example.com\n", request.Method, request.URL.Path, query, request.Proto)
	for _, k := range sortedKeys(request.Header) {
		for _, v := range request.Header[k] {
			fmt.Fprintf(s, "%s: %s\n", k, v)
		}
	}
	fmt.Fprintf(s, "\n%s\n\n", requestBody)

	fmt.Fprintf(s, "%s %s\n", response.Proto, response.Status)
	for _, k := range sortedKeys(response.Header) {
		if k == "Date" {
			fmt.Fprintf(s, "Date: Mon, 15 Aug 2022 02:08:13 GMT\n")
			continue
		}
		for _, v := range response.Header[k] {
			fmt.Fprintf(s, "%s: %s\n", k, v)
		}
	}
	fmt.Fprintf(s, "\n%s\n```\n\n\n", formatJSON(response.BodyString()))

	filename := strings.ReplaceAll(strings.ToLower(title), " ", "_") + ".md"
	p := path.Join(examplesPath, path.Clean(filename))
	err := os.WriteFile(p, []byte(s.String()), 0666)
	if err != nil {
		fmt.Println("Saving err:", err)
	}
}

func formatJSON(body string) string {
	var value any
	err := json.Unmarshal([]byte(body), &value)
	if err != nil {
		return body
	}
	formatted, err := json.Marshal(value, json.Deterministic(true), jsontext.WithIndent("    "))
	if err != nil {
		return body
	}
	return string(formatted)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
