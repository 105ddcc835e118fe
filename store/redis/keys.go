package redis

// defaultKeyPrefix namespaces every key the store writes.
const defaultKeyPrefix = "vmjobs:"

// jobKey returns the Hash key for a job: vmjobs:job:{id}
func (s *Store) jobKey(id string) string { return s.prefix + "job:" + id }

// orderKey is the Sorted Set of job IDs scored by insertion sequence.
func (s *Store) orderKey() string { return s.prefix + "jobs" }

// seqKey is the counter that scores orderKey.
func (s *Store) seqKey() string { return s.prefix + "job_seq" }
