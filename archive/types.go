package archive

import (
	"fmt"
	"strings"
)

// RecordType is the category of record being archived. Records are opaque to the
// store; the type only selects where they are kept.
type RecordType int

const (
	RecordAccount RecordType = iota + 1
	RecordTransactionBatch
)

// Collection names, fixed per record type.
const (
	AccountCollection     = "accounts"
	TransactionCollection = "transaction_data"
)

var recordTypes = []RecordType{RecordAccount, RecordTransactionBatch}

// RecordTypes returns every supported record type.
func RecordTypes() []RecordType {
	out := make([]RecordType, len(recordTypes))
	copy(out, recordTypes)
	return out
}

// Collection returns the physical collection/table name for the record type.
func (r RecordType) Collection() (string, error) {
	switch r {
	case RecordAccount:
		return AccountCollection, nil
	case RecordTransactionBatch:
		return TransactionCollection, nil
	default:
		return "", Errorf(ErrUnknownRecordType, "record type %d", int(r))
	}
}

func (r RecordType) String() string {
	switch r {
	case RecordAccount:
		return "account"
	case RecordTransactionBatch:
		return "transaction_batch"
	default:
		return fmt.Sprintf("record_type(%d)", int(r))
	}
}

// ParseRecordType maps a config/CLI name to a RecordType.
func ParseRecordType(s string) (RecordType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "account", "accounts":
		return RecordAccount, nil
	case "transaction_batch", "transactionbatch", "transaction", "transactions":
		return RecordTransactionBatch, nil
	default:
		return 0, Errorf(ErrUnknownRecordType, "unknown record type %q", s)
	}
}

// Kind selects the backend technology an archive store writes to.
type Kind string

const (
	KindMongoDB Kind = "mongodb"
	KindSQL     Kind = "sql"
	KindS3      Kind = "s3"
	KindLocalFS Kind = "localfs"
	KindMemory  Kind = "memory"
)

var kinds = []Kind{KindMongoDB, KindSQL, KindS3, KindLocalFS, KindMemory}

// Kinds returns every declared backend kind.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// String returns the display name of the backend.
func (k Kind) String() string {
	switch k {
	case KindMongoDB:
		return "MongoDB"
	case KindSQL:
		return "SQL"
	case KindS3:
		return "S3"
	case KindLocalFS:
		return "LocalFS"
	case KindMemory:
		return "Memory"
	default:
		return string(k)
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	for _, d := range kinds {
		if d == k {
			return true
		}
	}
	return false
}

// ParseKind maps a config name ("mongodb", "sql", ...) to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", Errorf(ErrConfigInvalid, "unknown backend %q", s)
	}
	return k, nil
}

// ConnectionPolicy controls whether a store opens a backend session per call or
// holds one for its lifetime.
type ConnectionPolicy string

const (
	PolicyPerCall ConnectionPolicy = "per_call"
	PolicyPooled  ConnectionPolicy = "pooled"
)

// ParseConnectionPolicy maps a config name to a ConnectionPolicy. Empty means per call.
func ParseConnectionPolicy(s string) (ConnectionPolicy, error) {
	switch ConnectionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyPerCall:
		return PolicyPerCall, nil
	case PolicyPooled:
		return PolicyPooled, nil
	default:
		return "", Errorf(ErrConfigInvalid, "unknown connection policy %q", s)
	}
}
