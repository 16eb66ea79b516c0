package repository

// CacheStore is a key/value cache for derived values.
type CacheStore interface {
	Read(key string) (any, bool)
	Write(key string, value any)
	Delete(key string)
}
