// Package gemini implements [dispatch.Engine] for the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK, translating between the dispatch
// transcript and Gemini contents. Each Next call is a single non-streaming
// GenerateContent request whose first function call, if any, becomes the
// next step.
package gemini

const defaultModel = "gemini-2.5-flash"
