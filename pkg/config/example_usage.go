package config

// Example usage of the configuration system:
//
// 1. Load configuration with all sources:
//
//     config, err := config.Load("", nil)
//     if err != nil {
//         log.Fatal(err)
//     }
//
// 2. Load with custom config file:
//
//     config, err := config.Load("/path/to/config.yaml", nil)
//     if err != nil {
//         log.Fatal(err)
//     }
//
// 3. Load with command line flags:
//
//     flags := map[string]interface{}{
//         "account":        "acct-123",
//         "session-cookie": "abc123",
//         "output":         "./family-media",
//         "concurrent":     5,
//         "asset-cap":      200,
//         "log-level":      "debug",
//     }
//     config, err := config.Load("", flags)
//     if err != nil {
//         log.Fatal(err)
//     }
//
// 4. Programmatic configuration:
//
//     config := config.DefaultConfig()
//     config.Service.AccountID = "acct-123"
//     config.Service.SessionCookie = "your-session-cookie"
//     config.Download.ConcurrentDownloads = 5
//
//     if err := config.Validate(); err != nil {
//         log.Fatal(err)
//     }
//
// 5. Save configuration to file:
//
//     if err := config.Save(".nestsync.yaml"); err != nil {
//         log.Fatal(err)
//     }
//
// 6. Environment variables:
//
//     export NESTSYNC_ACCOUNT_ID="acct-123"
//     export NESTSYNC_SESSION_COOKIE="your-session-cookie"
//     export NESTSYNC_OUTPUT_DIR="./family-media"
//     export NESTSYNC_CONCURRENT_DOWNLOADS="5"
//     export NESTSYNC_REQUESTS_PER_MINUTE="30"
//     export NESTSYNC_ASSET_CAP="200"
//     export NESTSYNC_LOG_LEVEL="debug"
//
// 7. Using configuration in your application:
//
//     // Create feed client with config
//     client := sproutbook.NewClient(
//         config.Service.BaseURL,
//         time.Duration(config.Service.RequestTimeout),
//         log,
//     )
//     client.SetSession(
//         config.Service.SessionCookie,
//         config.Service.AccountID,
//         config.Service.UserAgent,
//     )
//
//     // Set up rate limiter
//     limiter := ratelimit.PerMinute(config.RateLimit.RequestsPerMinute)
//
//     // Configure download pool
//     pool := downloader.NewPool(
//         config.Download.ConcurrentDownloads,
//         client, store, stamper, limiter, log,
//     )
