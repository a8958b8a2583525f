package auth

import (
	"fmt"
	"strings"
)

// ShowCookieExtractionGuide displays step-by-step instructions for pulling
// the session cookie and account id out of a logged-in browser.
func ShowCookieExtractionGuide() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("SPROUTBOOK SESSION EXTRACTION GUIDE")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()

	fmt.Println("nestsync talks to the parent portal with your own session cookie.")
	fmt.Println("Extract it from a logged-in browser:")
	fmt.Println()

	fmt.Println("STEP 1: Log in to the parent portal")
	fmt.Println("   - Open the Sproutbook parent site in your browser")
	fmt.Println("   - Log in and make sure the daily feed loads")
	fmt.Println()

	fmt.Println("STEP 2: Open Developer Tools")
	fmt.Println("   - Chrome/Edge/Brave: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Println("   - Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Println("   - Safari: enable the Developer menu, then Cmd+Option+I")
	fmt.Println()

	fmt.Println("STEP 3: Find the session cookie")
	fmt.Println("   - Go to the Network tab and refresh the page")
	fmt.Println("   - Click any request to the portal domain")
	fmt.Println("   - Under Request Headers, copy the full 'Cookie:' value")
	fmt.Println()

	fmt.Println("STEP 4: Find your account id")
	fmt.Println("   - Still in the Network tab, look for an API request like")
	fmt.Println("     /api/v1/accounts/<number>/enrollments")
	fmt.Println("   - The <number> segment is your account id")
	fmt.Println()

	fmt.Println("TIPS:")
	fmt.Println("   - Copy the entire cookie header value, semicolons included")
	fmt.Println("   - Sessions expire; rerun 'nestsync auth login' when sync")
	fmt.Println("     starts failing with authentication errors")
	fmt.Println()

	fmt.Println("SECURITY WARNING:")
	fmt.Println("   - The cookie grants full access to your parent account")
	fmt.Println("   - Never share it; nestsync stores it in your system keychain")
	fmt.Println("     or an encrypted file")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
}

// ShowQuickExtractGuide shows a condensed version for experienced users
func ShowQuickExtractGuide() {
	fmt.Println("\nQuick guide: F12 > Network tab > refresh > click any portal request > Headers > Cookie")
	fmt.Println("   Need: the Cookie header value and the account id from an /accounts/<id>/ URL")
	fmt.Println("   Run 'nestsync auth login --guide' for detailed instructions")
}
