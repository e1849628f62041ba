package metrics

import (
	"context"

	"vitals_backend/detection"
)

// InstrumentDetector records every Detect call of d into store.
func InstrumentDetector(d detection.Detector, store *Store) detection.Detector {
	return detection.DetectorFunc(func(ctx context.Context, req detection.Request) ([]detection.FaceResult, error) {
		start := store.now()
		faces, err := d.Detect(ctx, req)

		rec := RunRecord{
			Method:    req.Method,
			Faces:     len(faces),
			StartTime: start,
			Duration:  store.now().Sub(start),
		}
		switch {
		case err != nil:
			rec.Outcome = OutcomeError
			rec.ErrorKind = detection.KindOf(err)
		case len(faces) == 0:
			rec.Outcome = OutcomeNoFace
		default:
			rec.Outcome = OutcomeSuccess
		}
		store.Record(rec)
		return faces, err
	})
}
