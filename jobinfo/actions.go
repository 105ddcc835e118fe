package jobinfo

import (
	"context"
	"fmt"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/action"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

// Request types served by Actions.
const (
	ActionGetInfo = "jobs_get_info"
	ActionDelete  = "jobs_delete"
)

// Actions returns the job query and delete actions backed by s.
func (s *Service) Actions() []action.Action {
	return []action.Action{
		{Name: ActionGetInfo, Handler: s.getInfo},
		{Name: ActionDelete, Required: []string{"id"}, Handler: s.delete},
	}
}

func (s *Service) getInfo(ctx context.Context, params job.Parameters) (any, error) {
	f, err := FilterFromParameters(params)
	if err != nil {
		return nil, err
	}
	infos, err := s.GetJobsInfo(ctx, f)
	if err != nil {
		return nil, err
	}
	return map[string]any{"jobs": infos}, nil
}

func (s *Service) delete(ctx context.Context, params job.Parameters) (any, error) {
	raw, _ := params.String("id")
	jobID, err := id.ParseJobID(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", vmjobs.ErrInvalidParameter, err)
	}
	return s.DeleteBackgroundJob(ctx, jobID)
}
