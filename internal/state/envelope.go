package state

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// envelopeVersion is bumped whenever the envelope layout changes.
const envelopeVersion = 1

type envelope struct {
	Version     int         `cbor:"1,keyasint"`
	Fingerprint string      `cbor:"2,keyasint"`
	TokenCount  int         `cbor:"3,keyasint"`
	Size        int         `cbor:"4,keyasint"`
	Compression Compression `cbor:"5,keyasint"`
	Data        []byte      `cbor:"6,keyasint"`
}

// Core Deterministic Encoding: the same snapshot always yields the same bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("state: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("state: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal serializes snap, compressing its blob with c.
func Marshal(snap *Snapshot, c Compression) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("state: marshal nil snapshot")
	}
	data, used, err := compress(snap.Data, c)
	if err != nil {
		return nil, fmt.Errorf("state: marshal: %w", err)
	}
	return encMode.Marshal(envelope{
		Version:     envelopeVersion,
		Fingerprint: snap.Fingerprint,
		TokenCount:  snap.TokenCount,
		Size:        snap.Size,
		Compression: used,
		Data:        data,
	})
}

// Unmarshal parses bytes produced by Marshal. Failures wrap
// ErrSnapshotCorrupt.
func Unmarshal(b []byte) (*Snapshot, error) {
	var env envelope
	if err := decMode.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: envelope version %d", ErrSnapshotCorrupt, env.Version)
	}
	if env.Size < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrSnapshotCorrupt)
	}
	data, err := decompress(env.Data, env.Compression, env.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	return &Snapshot{
		Fingerprint: env.Fingerprint,
		TokenCount:  env.TokenCount,
		Size:        env.Size,
		Data:        data,
	}, nil
}
