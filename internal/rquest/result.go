package rquest

import (
	"encoding/base64"
	"encoding/json"
)

// Status of a result document.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// File carries a serialized distribution table.
type File struct {
	Name        string
	Description string
	Data        string
	Size        float64
	Type        string
	Sensitive   bool
	Reference   string
}

const fileType = "BCOS"

// NewFile base64-encodes content into a sensitive result file. Size is in KB
// of the encoded payload.
func NewFile(name, description, content string) File {
	data := base64.StdEncoding.EncodeToString([]byte(content))
	return File{
		Name:        name,
		Description: description,
		Data:        data,
		Size:        float64(len(data)) / 1000,
		Type:        fileType,
		Sensitive:   true,
	}
}

// Decode returns the file's payload.
func (f File) Decode() (string, error) {
	b, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Result is the single outbound document produced per query.
type Result struct {
	Status          Status
	ProtocolVersion string
	UUID            string
	CollectionID    string
	Count           int64
	DatasetsCount   int
	Files           []File
	Message         string
}

type wireFile struct {
	FileData    string  `json:"file_data"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Sensitive   bool    `json:"sensitive"`
	Reference   string  `json:"reference"`
	Size        float64 `json:"size"`
	Type        string  `json:"type"`
}

type wireQueryResult struct {
	Count        int64      `json:"count"`
	DatasetCount int        `json:"datasetCount"`
	Files        []wireFile `json:"files"`
}

type wireResult struct {
	Status          Status          `json:"status"`
	ProtocolVersion string          `json:"protocolVersion"`
	UUID            string          `json:"uuid"`
	QueryResult     wireQueryResult `json:"queryResult"`
	Message         string          `json:"message"`
	CollectionID    string          `json:"collection_id"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	w := wireResult{
		Status:          r.Status,
		ProtocolVersion: r.ProtocolVersion,
		UUID:            r.UUID,
		Message:         r.Message,
		CollectionID:    r.CollectionID,
		QueryResult: wireQueryResult{
			Count:        r.Count,
			DatasetCount: r.DatasetsCount,
			Files:        make([]wireFile, 0, len(r.Files)),
		},
	}
	for _, f := range r.Files {
		w.QueryResult.Files = append(w.QueryResult.Files, wireFile{
			FileData:    f.Data,
			Name:        f.Name,
			Description: f.Description,
			Sensitive:   f.Sensitive,
			Reference:   f.Reference,
			Size:        f.Size,
			Type:        f.Type,
		})
	}
	return json.Marshal(w)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Result{
		Status:          w.Status,
		ProtocolVersion: w.ProtocolVersion,
		UUID:            w.UUID,
		CollectionID:    w.CollectionID,
		Count:           w.QueryResult.Count,
		DatasetsCount:   w.QueryResult.DatasetCount,
		Message:         w.Message,
	}
	for _, f := range w.QueryResult.Files {
		r.Files = append(r.Files, File{
			Name:        f.Name,
			Description: f.Description,
			Data:        f.FileData,
			Size:        f.Size,
			Type:        f.Type,
			Sensitive:   f.Sensitive,
			Reference:   f.Reference,
		})
	}
	return nil
}
