package filedrop

import (
	"io"
	"log/slog"
	"mime/multipart"

	"github.com/dmitrymomot/filedrop/core/binder"
	"github.com/dmitrymomot/filedrop/core/handler"
	"github.com/dmitrymomot/filedrop/core/ingest"
	"github.com/dmitrymomot/filedrop/core/logger"
	"github.com/dmitrymomot/filedrop/core/quota"
	"github.com/dmitrymomot/filedrop/core/response"
	"github.com/dmitrymomot/filedrop/core/sanitizer"
)

// apiRequest carries the form fields of every action; each action reads
// only the fields it needs.
type apiRequest struct {
	Action string `form:"action" sanitize:"trim,lower"`
	Path   string `form:"path"`

	// upload
	Files         []*multipart.FileHeader `file:"files"`
	RelativePaths []string                `form:"relativePaths"`

	// upload_check, upload_chunk, upload_abort
	UploadID     string                `form:"uploadId" sanitize:"trim"`
	ChunkIndex   *int                  `form:"chunkIndex"`
	TotalChunks  *int                  `form:"totalChunks"`
	Filename     string                `form:"filename"`
	RelativePath string                `form:"relativePath"`
	Chunk        *multipart.FileHeader `file:"chunk"`
}

type fileResult struct {
	Filename string `json:"filename"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Path     string `json:"path,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

type uploadResponse struct {
	Success bool              `json:"success"`
	Results []fileResult      `json:"results"`
	Storage quota.StorageInfo `json:"storage"`
}

type checkResponse struct {
	Success        bool `json:"success"`
	Exists         bool `json:"exists"`
	NextChunkIndex int  `json:"nextChunkIndex"`
}

type chunkResponse struct {
	Success     bool `json:"success"`
	ChunkIndex  int  `json:"chunkIndex"`
	TotalChunks int  `json:"totalChunks"`
}

type mergedResponse struct {
	Success  bool              `json:"success"`
	Filename string            `json:"filename"`
	Path     string            `json:"path"`
	Size     int64             `json:"size"`
	Storage  quota.StorageInfo `json:"storage"`
}

type storageResponse struct {
	Success bool              `json:"success"`
	Storage quota.StorageInfo `json:"storage"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// API serves POST /api.
type API struct {
	engine *ingest.Engine
	bind   binder.Binder
	logger *slog.Logger
}

// NewAPI creates the action handler over engine.
func NewAPI(engine *ingest.Engine, log *slog.Logger) *API {
	if log == nil {
		log = logger.Nop()
	}
	return &API{
		engine: engine,
		bind:   binder.Form(),
		logger: log.With(logger.Component("api")),
	}
}

// Handle binds the request, resolves the action and dispatches it.
func (a *API) Handle(ctx *Context) handler.Response {
	r := ctx.Request()

	var req apiRequest
	err := a.bind(r, &req)
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	if err != nil {
		return response.Error(requestError(err))
	}
	if err := sanitizer.SanitizeStruct(&req); err != nil {
		return response.Error(requestError(err))
	}

	action, err := ParseAction(req.Action)
	if err != nil {
		return response.Error(response.ErrBadRequest.WithCode("unknown_action").WithMessage(err.Error()))
	}

	switch action {
	case ActionUpload:
		return a.upload(ctx, req)
	case ActionUploadCheck:
		return a.uploadCheck(ctx, req)
	case ActionUploadChunk:
		return a.uploadChunk(ctx, req)
	case ActionUploadAbort:
		return a.uploadAbort(ctx, req)
	case ActionStorage:
		return response.JSON(storageResponse{Success: true, Storage: a.engine.Storage()})
	default:
		return response.Error(response.ErrBadRequest.WithCode("unknown_action"))
	}
}

func (a *API) upload(ctx *Context, req apiRequest) handler.Response {
	if len(req.Files) == 0 {
		return response.Error(response.ErrBadRequest.WithCode("no_files").WithMessage("no files uploaded"))
	}

	files := make([]ingest.FileInput, len(req.Files))
	for i, fh := range req.Files {
		files[i] = ingest.FileInput{
			Name: fh.Filename,
			Size: fh.Size,
			Open: openPart(fh),
		}
		if i < len(req.RelativePaths) {
			files[i].RelativePath = req.RelativePaths[i]
		}
	}

	batch, err := a.engine.Upload(ctx, ctx.SessionID(), req.Path, files)
	if err != nil {
		return response.Error(ingestError(err))
	}

	resp := uploadResponse{
		Success: true,
		Results: make([]fileResult, len(batch.Results)),
		Storage: batch.Storage,
	}
	for i, res := range batch.Results {
		if res.OK() {
			resp.Results[i] = fileResult{
				Filename: res.Name,
				Success:  true,
				Message:  "uploaded",
				Path:     res.Path,
				Size:     res.Size,
			}
			continue
		}
		httpErr := ingestError(res.Err)
		resp.Success = false
		resp.Results[i] = fileResult{
			Filename: res.Name,
			Message:  httpErr.Message,
			Code:     httpErr.Code,
		}
	}
	return response.JSON(resp)
}

func (a *API) uploadCheck(ctx *Context, req apiRequest) handler.Response {
	status, err := a.engine.CheckStatus(ctx, req.UploadID)
	if err != nil {
		return response.Error(ingestError(err))
	}
	return response.JSON(checkResponse{
		Success:        true,
		Exists:         status.Exists,
		NextChunkIndex: status.NextChunkIndex,
	})
}

func (a *API) uploadChunk(ctx *Context, req apiRequest) handler.Response {
	if req.ChunkIndex == nil || req.TotalChunks == nil {
		return response.Error(response.ErrBadRequest.WithCode(ingest.CodeInvalidChunk).
			WithMessage("chunkIndex and totalChunks are required"))
	}

	in := ingest.ChunkInput{
		UploadID:     req.UploadID,
		Index:        *req.ChunkIndex,
		Total:        *req.TotalChunks,
		Filename:     req.Filename,
		RelativePath: req.RelativePath,
		TargetDir:    req.Path,
		Size:         -1,
	}
	if req.Chunk != nil {
		in.Size = req.Chunk.Size
		in.Open = openPart(req.Chunk)
	}

	res, err := a.engine.ReceiveChunk(ctx, ctx.SessionID(), in)
	if err != nil {
		return response.Error(ingestError(err))
	}

	if !res.Complete {
		return response.JSON(chunkResponse{
			Success:     true,
			ChunkIndex:  res.Index,
			TotalChunks: res.Total,
		})
	}
	return response.JSON(mergedResponse{
		Success:  true,
		Filename: res.Name,
		Path:     res.Path,
		Size:     res.Size,
		Storage:  res.Storage,
	})
}

func (a *API) uploadAbort(ctx *Context, req apiRequest) handler.Response {
	if err := a.engine.Abort(ctx, req.UploadID); err != nil {
		return response.Error(ingestError(err))
	}
	return response.JSON(successResponse{Success: true})
}

func openPart(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}
