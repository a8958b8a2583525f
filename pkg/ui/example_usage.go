// Package ui provides terminal output helpers for the sync CLI
// This file demonstrates example usage of the UI components
package ui

/*
Example usage of the UI components:

// Terminal colors and output
ui.PrintLogo()                                   // Print ASCII logo
ui.PrintInfo("Account", "482913")                // Cyan label, yellow value
ui.PrintSuccess("Sync completed!")               // Green success message
ui.PrintError("Sync failed", err)                // Red error message
ui.PrintWarning("Asset cap reached")             // Yellow warning message
ui.PrintHighlight("[SYNCING ENROLLMENTS]")       // Magenta highlight message

// Quiet mode for cron runs
ui.SetQuietMode(true)                            // Errors only from here on

// Live sync progress
display := ui.NewSyncDisplay(false)
display.EnrollmentStarted("Emma", true)          // Reset counters, print header
display.PageScanned(1, 100)                      // One feed page fetched
display.DownloadsQueued(42)                      // Fix the bar denominator
display.AssetCompleted("2024-03-05_n1_01.jpg", 204800)
display.AssetFailed("2024-03-05_n2_01.jpg", err)
display.EnrollmentFinished("Emma", 41, 1)        // Per-enrollment summary

// Notifications (cross-platform)
notifier := ui.NewNotifier()
notifier.SendNotification("Sync Complete", "68 new assets archived")
notifier.SendError("Sync Failed", "session rejected, run auth login")
notifier.SendSuccess("Success", "All enrollments up to date")

// Direct color usage
fmt.Printf("%s: %s\n", ui.Cyan("Enrollment"), ui.Yellow("Emma"))
fmt.Println(ui.Green("✓ Delivered"))
fmt.Println(ui.Red("✗ Failed"))
*/
