// Package video asks the backend's analysis functions to review uploaded clips.
package video

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
)

type Request struct {
	VideoURL string `json:"video_url" validate:"required,url"`
	PlayerID string `json:"player_id" validate:"omitempty,uuid"`
	Focus    string `json:"focus,omitempty" validate:"max=100"`
}

func (r *Request) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

type ShotAnalysis struct {
	Attempts    int      `json:"attempts"`
	Made        int      `json:"made"`
	Accuracy    float64  `json:"accuracy"`
	ReleaseTime float64  `json:"release_time_ms"`
	ArcAngle    float64  `json:"arc_angle"`
	Feedback    []string `json:"feedback"`
}

type TechniqueAnalysis struct {
	Score        float64  `json:"score"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Drills       []string `json:"drills"`
}

type Service struct {
	functions core.FunctionInvoker
}

func NewService(functions core.FunctionInvoker) *Service {
	return &Service{functions: functions}
}

func (svc *Service) AnalyzeShot(ctx context.Context, req Request) (ShotAnalysis, error) {
	var res ShotAnalysis
	if err := svc.functions.Invoke(ctx, core.FnVideoShotAnalysis, req, &res); err != nil {
		return ShotAnalysis{}, errors.Wrap(err, "analyzing shot")
	}
	return res, nil
}

func (svc *Service) AnalyzeTechnique(ctx context.Context, req Request) (TechniqueAnalysis, error) {
	var res TechniqueAnalysis
	if err := svc.functions.Invoke(ctx, core.FnVideoTechniqueAnalysis, req, &res); err != nil {
		return TechniqueAnalysis{}, errors.Wrap(err, "analyzing technique")
	}
	return res, nil
}
