package world

// JobQueue is a FIFO of pending jobs.
type JobQueue struct {
	jobs []*Job
}

// Enqueue appends j as pending. Ended jobs and jobs already queued are ignored.
func (q *JobQueue) Enqueue(j *Job) bool {
	if j == nil || j.Terminal() || q.contains(j) {
		return false
	}
	j.state = JobPending
	j.queue = q
	q.jobs = append(q.jobs, j)
	return true
}

// Dequeue removes the head and marks it claimed. It returns nil when empty.
func (q *JobQueue) Dequeue() *Job {
	if len(q.jobs) == 0 {
		return nil
	}
	j := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	j.state = JobClaimed
	return j
}

// Remove extracts j wherever it is in the queue.
func (q *JobQueue) Remove(j *Job) bool {
	for i, x := range q.jobs {
		if x == j {
			q.jobs = append(q.jobs[:i:i], q.jobs[i+1:]...)
			return true
		}
	}
	return false
}

func (q *JobQueue) contains(j *Job) bool {
	for _, x := range q.jobs {
		if x == j {
			return true
		}
	}
	return false
}

func (q *JobQueue) Len() int { return len(q.jobs) }

// Jobs returns the queued jobs in dispatch order.
func (q *JobQueue) Jobs() []*Job {
	return append([]*Job(nil), q.jobs...)
}
