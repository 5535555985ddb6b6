package handler

import "reportcard/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Student    *StudentHandler
	Subject    *SubjectHandler
	ReportCard *ReportCardHandler
	Summary    *SummaryHandler
	Job        *JobHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		Student:    NewStudentHandler(svc.Student),
		Subject:    NewSubjectHandler(svc.Subject),
		ReportCard: NewReportCardHandler(svc.ReportCard),
		Summary:    NewSummaryHandler(svc.Summary, svc.Job),
		Job:        NewJobHandler(svc.Job),
		Export:     NewExportHandler(svc.Export),
	}
}
