// Package cookie sets and verifies HMAC-signed HTTP cookies.
//
// The upload service keeps only an opaque session token in the browser;
// the signature stops clients from guessing other sessions' tokens.
//
//	mgr, err := cookie.New([]string{os.Getenv("COOKIE_SECRET")}, cookie.WithSecure(true))
//	if err != nil {
//		return err
//	}
//	_ = mgr.SetSigned(w, "__session", token, cookie.WithMaxAge(3600))
//	token, err := mgr.GetSigned(r, "__session")
//
// Several secrets may be configured (COOKIE_SECRETS, comma separated). The
// first signs, all of them verify.
package cookie
