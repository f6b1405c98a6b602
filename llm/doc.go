// Package llm is the boundary between the agent loop and a text-completion
// model: prompt text and stop sequences go in, completion text and a finish
// reason come out.
//
// Provider backends implement ProviderAdapter. The gollm-backed adapter
// covers the hosted providers gollm supports:
//
//	adapter, err := llm.NewGollmAdapter("openai", os.Getenv("OPENAI_API_KEY"),
//	    llm.WithModel("gpt-4o-mini"))
//	client := llm.NewClient(
//	    llm.WithProvider("openai", adapter),
//	    llm.WithMiddleware(
//	        llm.RetryMiddleware(llm.DefaultRetryPolicy()),
//	        llm.RateLimit(rate.NewLimiter(rate.Every(time.Second), 2)),
//	    ),
//	)
//	resp, err := client.Complete(ctx, llm.Request{
//	    Prompt:        prompt,
//	    StopSequences: []string{"<BEGIN OBSERVATION>"},
//	})
//
// Middleware wraps every call in registration order, so the first middleware
// registered sees the request first. Registering retry before the rate limit
// makes every retry wait for a token.
//
// Errors are classified into a small hierarchy rooted at SDKError.
// IsRetryable tells transient failures (rate limits, server errors, timeouts)
// apart from ones that will not improve on retry (bad credentials, an
// oversized context).
package llm
