package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

func main() {
	baseURLPtr := flag.String("base-url", "http://localhost:8000", "Audio library base URL")
	uploadPtr := flag.String("upload", "", "Upload the given audio file")
	languagePtr := flag.String("language", "en", "Language for -upload")
	languagesPtr := flag.Bool("languages", false, "List languages with audio")
	getPtr := flag.String("get", "", "Fetch the newest asset for a language")
	helpPtr := flag.Bool("help", false, "Show usage information")

	flag.Parse()

	if *helpPtr || (*uploadPtr == "" && !*languagesPtr && *getPtr == "") {
		fmt.Println("Audio Tools Usage:")
		fmt.Println("  -upload FILE [-language CODE]  Upload an audio file")
		fmt.Println("  -languages                     List languages with audio")
		fmt.Println("  -get CODE                      Show the newest asset for a language")
		fmt.Println("  -base-url URL                  Server address (default http://localhost:8000)")
		os.Exit(0)
	}

	client := &http.Client{Timeout: 60 * time.Second}

	if *uploadPtr != "" {
		result, err := uploadFile(client, *baseURLPtr, *uploadPtr, *languagePtr)
		exitOnError("Error uploading file", err)
		printJSON(result)
	}

	if *languagesPtr {
		result, err := getJSON(client, *baseURLPtr+"/api/audio/languages")
		exitOnError("Error listing languages", err)
		printJSON(result)
	}

	if *getPtr != "" {
		result, err := getJSON(client, *baseURLPtr+"/api/audio/"+url.PathEscape(*getPtr))
		exitOnError("Error fetching asset", err)
		printJSON(result)
	}
}

func uploadFile(client *http.Client, baseURL, path, language string) (any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	// Stream the body instead of buffering the whole file
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	target := baseURL + "/api/audio/upload?language=" + url.QueryEscape(language)
	req, err := http.NewRequest(http.MethodPost, target, pr)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return doJSON(client, req)
}

func getJSON(client *http.Client, target string) (any, error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	return doJSON(client, req)
}

func doJSON(client *http.Client, req *http.Request) (any, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("error response: %s, status: %d", string(bodyBytes), resp.StatusCode)
	}

	var result any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	return result, nil
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func exitOnError(msg string, err error) {
	if err != nil {
		fmt.Printf("%s: %v\n", msg, err)
		os.Exit(1)
	}
}
