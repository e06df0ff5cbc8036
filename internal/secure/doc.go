// Package secure keeps short-lived secrets (the secret-store session token
// and the decrypted AppRole ids) in memguard enclaves instead of plain Go
// strings.
//
// A Value is sealed on creation and only decrypted for the duration of a
// Reveal or Use call:
//
//	token := secure.NewValue(resp.Auth.ClientToken)
//	defer token.Destroy()
//
//	err := token.Use(func(b []byte) error {
//	    req.Header.Set("X-Vault-Token", string(b))
//	    return nil
//	})
//
// Call memguard.Purge (via Purge) once at process exit to wipe every
// remaining enclave key.
package secure
