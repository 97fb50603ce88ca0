package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// JobResponse — job из API.
type JobResponse struct {
	ID           string   `json:"id"`
	BoundaryName string   `json:"boundary_name"`
	Processors   []string `json:"processors"`
	State        string   `json:"state"`
	Error        string   `json:"error,omitempty"`
	ExpiresAt    string   `json:"expires_at,omitempty"`
	StartedAt    string   `json:"started_at,omitempty"`
	FinishedAt   string   `json:"finished_at,omitempty"`
	SubmittedAt  string   `json:"submitted_at"`
}

// SubmitJobResponse — подтверждение приёма заявки.
type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

// JobProgressResponse — прогресс выполняющегося процессора.
type JobProgressResponse struct {
	PercentComplete int    `json:"percent_complete"`
	CurrentTask     string `json:"current_task"`
}

// ProcessorStatusResponse — статус одного процессора внутри job.
type ProcessorStatusResponse struct {
	ProcessorName string               `json:"processor_name"`
	JobID         string               `json:"job_id"`
	JobStatus     string               `json:"job_status"`
	JobProgress   *JobProgressResponse `json:"job_progress,omitempty"`
	JobResult     map[string]any       `json:"job_result,omitempty"`
}

// JobGroupStatusResponse — агрегированный статус job из API.
type JobGroupStatusResponse struct {
	JobGroupStatus          string                    `json:"job_group_status"`
	JobGroupPercentComplete int                       `json:"job_group_percent_complete"`
	JobGroupProcessors      []ProcessorStatusResponse `json:"job_group_processors"`
}

// TaskResponse — task из API.
type TaskResponse struct {
	ID           string         `json:"id"`
	JobID        string         `json:"job_id"`
	Kind         string         `json:"kind"`
	ProcessorSig string         `json:"processor_sig,omitempty"`
	Attempt      int            `json:"attempt"`
	Status       string         `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	StartedAt    string         `json:"started_at,omitempty"`
	FinishedAt   string         `json:"finished_at,omitempty"`
	CreatedAt    string         `json:"created_at"`
}

// BoundarySummary — краткая информация о границе из API.
type BoundarySummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BoundaryResponse — граница с геометрией из API.
type BoundaryResponse struct {
	Name     string          `json:"name"`
	Geometry json.RawMessage `json:"geometry"`
	Envelope json.RawMessage `json:"envelope"`
}

// ProcessorResponse — метаданные процессора из API.
type ProcessorResponse struct {
	Signature   string   `json:"signature"`
	Dataset     string   `json:"dataset"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	DataFormats []string `json:"data_formats,omitempty"`
	License     string   `json:"license,omitempty"`
}

// PackageTree — дерево package → dataset → versions из API.
type PackageTree map[string]map[string][]string

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	BoundaryName string   `json:"boundary_name"`
	Processors   []string `json:"processors"`
	CronExpr     string   `json:"cron_expr"`
	Timezone     string   `json:"timezone"`
	Enabled      bool     `json:"enabled"`
	NextDueAt    string   `json:"next_due_at,omitempty"`
	LastJobID    string   `json:"last_job_id,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

// --- Request types ---

// SubmitJobRequest — заявка на генерацию пакета.
type SubmitJobRequest struct {
	BoundaryName string   `json:"boundary_name"`
	Processors   []string `json:"processors"`
	ExpiresInSec int      `json:"expires_in_sec,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name         string   `json:"name"`
	BoundaryName string   `json:"boundary_name"`
	Processors   []string `json:"processors"`
	CronExpr     string   `json:"cron_expr"`
	Timezone     string   `json:"timezone,omitempty"`
	Enabled      bool     `json:"enabled"`
}

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name       *string   `json:"name,omitempty"`
	Processors *[]string `json:"processors,omitempty"`
	CronExpr   *string   `json:"cron_expr,omitempty"`
	Timezone   *string   `json:"timezone,omitempty"`
}

// ListJobsOpts — параметры фильтрации jobs.
type ListJobsOpts struct {
	Boundary string
	State    string
	Limit    int
}

// ListBoundariesOpts — параметры поиска границ.
type ListBoundariesOpts struct {
	Name  string
	Lon   string
	Lat   string
	Limit int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для autopkg API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Jobs ---

// SubmitJob отправляет заявку на генерацию пакета.
func (c *Client) SubmitJob(req SubmitJobRequest) (*SubmitJobResponse, error) {
	var resp SubmitJobResponse
	err := c.post("/api/v1/jobs", req, &resp)
	return &resp, err
}

// GetJobStatus возвращает агрегированный статус job.
func (c *Client) GetJobStatus(id string) (*JobGroupStatusResponse, error) {
	var status JobGroupStatusResponse
	err := c.get("/api/v1/jobs/"+id, &status)
	return &status, err
}

// ListJobs возвращает список jobs с фильтрацией.
func (c *Client) ListJobs(opts ListJobsOpts) ([]JobResponse, error) {
	params := url.Values{}
	if opts.Boundary != "" {
		params.Set("boundary", opts.Boundary)
	}
	if opts.State != "" {
		params.Set("state", opts.State)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var jobs []JobResponse
	err := c.list("/api/v1/jobs", params, &jobs)
	return jobs, err
}

// ListJobTasks возвращает задачи job.
func (c *Client) ListJobTasks(jobID string) ([]TaskResponse, error) {
	var tasks []TaskResponse
	err := c.list("/api/v1/jobs/"+jobID+"/tasks", nil, &tasks)
	return tasks, err
}

// --- Boundaries ---

// ListBoundaries возвращает границы. Name включает поиск по подстроке,
// пара Lon/Lat — поиск по точке.
func (c *Client) ListBoundaries(opts ListBoundariesOpts) ([]BoundarySummary, error) {
	params := url.Values{}
	if opts.Name != "" {
		params.Set("name", opts.Name)
	}
	if opts.Lon != "" {
		params.Set("lon", opts.Lon)
	}
	if opts.Lat != "" {
		params.Set("lat", opts.Lat)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var boundaries []BoundarySummary
	err := c.list("/api/v1/boundaries", params, &boundaries)
	return boundaries, err
}

// GetBoundary возвращает границу с геометрией по имени.
func (c *Client) GetBoundary(name string) (*BoundaryResponse, error) {
	var boundary BoundaryResponse
	err := c.get("/api/v1/boundaries/"+name, &boundary)
	return &boundary, err
}

// --- Packages ---

// ListPackages возвращает дерево пакетов в хранилище.
func (c *Client) ListPackages(summaryOnly bool) (PackageTree, error) {
	path := "/api/v1/packages"
	if summaryOnly {
		path += "?summary=true"
	}

	var tree PackageTree
	err := c.get(path, &tree)
	return tree, err
}

// ListPackageDatasets возвращает датасеты пакета.
func (c *Client) ListPackageDatasets(name string) ([]string, error) {
	var datasets []string
	err := c.list("/api/v1/packages/"+name+"/datasets", nil, &datasets)
	return datasets, err
}

// ListDatasetVersions возвращает версии датасета пакета.
func (c *Client) ListDatasetVersions(name, dataset string) ([]string, error) {
	var versions []string
	err := c.list("/api/v1/packages/"+name+"/datasets/"+dataset, nil, &versions)
	return versions, err
}

// GetDatapackage возвращает datapackage.json пакета.
func (c *Client) GetDatapackage(name string) (map[string]any, error) {
	var datapackage map[string]any
	err := c.get("/api/v1/packages/"+name+"/datapackage", &datapackage)
	return datapackage, err
}

// --- Processors ---

// ListProcessors возвращает зарегистрированные процессоры.
func (c *Client) ListProcessors() ([]ProcessorResponse, error) {
	var procs []ProcessorResponse
	err := c.list("/api/v1/processors", nil, &procs)
	return procs, err
}

// --- Schedules ---

// ListSchedules возвращает schedules.
func (c *Client) ListSchedules() ([]ScheduleResponse, error) {
	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", nil, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule.
func (c *Client) CreateSchedule(req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
