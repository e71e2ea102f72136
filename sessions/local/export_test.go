package local

// SetCheckPassword swaps the password comparison and returns a func restoring it.
func SetCheckPassword(fn func(password, hash string) bool) func() {
	original := checkPassword
	checkPassword = fn
	return func() { checkPassword = original }
}
