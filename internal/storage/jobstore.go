package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/audiolift/api/internal/model"
)

// jobRecordName is the file holding the serialized job inside its directory.
const jobRecordName = "job.json"

// JobStore persists job records as whole-document JSON snapshots, one
// processed/{job_id}/job.json per job.
type JobStore struct {
	store *Store
}

// NewJobStore creates a JobStore layered on the given Store.
func NewJobStore(store *Store) *JobStore {
	return &JobStore{store: store}
}

// Save serializes job to its record file, creating the job directory as
// needed. The record is replaced atomically, so a concurrent Get never sees
// a truncated document. Last write wins.
func (js *JobStore) Save(job *model.Job) error {
	path := js.recordPath(job.JobID)
	data, err := json.Marshal(job)
	if err != nil {
		return &model.StorageError{Op: "encode job record for", Path: path, Err: err}
	}
	_, err = js.store.Save(data, path)
	return err
}

// Get loads the job record for jobID. A missing record returns (nil, nil);
// only read or parse failures produce an error.
func (js *JobStore) Get(jobID string) (*model.Job, error) {
	path := js.recordPath(jobID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &model.StorageError{Op: "read job record", Path: path, Err: err}
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, &model.StorageError{Op: "decode job record", Path: path, Err: err}
	}
	return &job, nil
}

func (js *JobStore) recordPath(jobID string) string {
	return filepath.Join(js.store.JobDir(jobID), jobRecordName)
}
