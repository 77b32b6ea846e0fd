// Package attachment encrypts files once under a random content key and
// wraps that key per recipient, so a shared blob serves every member of
// a conversation without re-uploading. Key wrapping goes through the
// same session/degraded split as message text.
package attachment
