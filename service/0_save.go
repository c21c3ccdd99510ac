package service

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/fulldump/apitest"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

const exampleHost = "inceptiontx.example.com"

// Save writes a markdown example of an API call into API_EXAMPLES_PATH.
// Nothing is written when the variable is not set.
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

	md := &strings.Builder{}

	fmt.Fprintf(md, "# %s\n", title)
	md.WriteString(cropTabs(description) + "\n")

	md.WriteString("Curl example:\n\n```sh\ncurl ")
	if request.Method != http.MethodGet {
		md.WriteString("-X " + request.Method + " ")
	}
	fmt.Fprintf(md, "\"https://%s%s%s\"", exampleHost, request.URL.Path, query)
	for _, k := range sortedKeys(request.Header) {
		for _, v := range request.Header[k] {
			fmt.Fprintf(md, " \\\n-H \"%s: %s\"", k, v)
		}
	}
	if requestBody != "" {
		fmt.Fprintf(md, " \\\n-d '%s'", requestBody)
	}
	md.WriteString("\n```\n\n\n")

	md.WriteString("HTTP request/response example:\n\n```http\n")
	fmt.Fprintf(md, "%s %s%s %s\n", request.Method, request.URL.Path, query, request.Proto)
	fmt.Fprintf(md, "Host: %s\n", exampleHost)
	writeHeaders(md, request.Header)
	md.WriteString("\n" + requestBody + "\n\n")

	fmt.Fprintf(md, "%s %s\n", response.Proto, response.Status)
	writeHeaders(md, response.Header)
	md.WriteString("\n" + formatJSON(response.BodyString()) + "\n")
	md.WriteString("```\n\n\n")

	filename := strings.ReplaceAll(strings.ToLower(title), " ", "_") + ".md"
	p := path.Join(examplesPath, path.Clean(filename))
	if err := os.WriteFile(p, []byte(md.String()), 0666); err != nil {
		fmt.Println("Saving err:", err)
	}
}

// writeHeaders prints headers sorted, with a fixed Date so examples do
// not change on every run.
func writeHeaders(md *strings.Builder, header http.Header) {
	for _, k := range sortedKeys(header) {
		if k == "Date" {
			md.WriteString("Date: Mon, 15 Aug 2022 02:08:13 GMT\n")
			continue
		}
		for _, v := range header[k] {
			fmt.Fprintf(md, "%s: %s\n", k, v)
		}
	}
}

func sortedKeys(header http.Header) []string {
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatJSON(body string) string {
	var value any
	if err := json.Unmarshal([]byte(body), &value); err != nil {
		return body
	}
	formatted, err := json.Marshal(value, json.Deterministic(true), jsontext.WithIndent("    "))
	if err != nil {
		return body
	}
	return string(formatted)
}

// cropTabs removes the indentation shared by every line of a description
// written inline in Go code.
func cropTabs(d string) string {

	lines := strings.Split(d, "\n")

	inner := lines
	if len(lines) > 2 {
		inner = lines[1 : len(lines)-1]
	}

	minTabs := -1
	for _, line := range inner {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tabs := len(line) - len(strings.TrimLeft(line, "\t"))
		if minTabs < 0 || tabs < minTabs {
			minTabs = tabs
		}
	}

	if minTabs > 0 {
		prefix := strings.Repeat("\t", minTabs)
		for i, line := range lines {
			lines[i] = strings.TrimPrefix(line, prefix)
		}
	}

	return strings.Join(lines, "\n")
}
