package scan

type ScanPathPayload struct {
	Path string `json:"Path" mod:"trim" validate:"required,abspath,max=4096"`
}

type ScanPathsPayload struct {
	Paths []string `json:"Paths" validate:"required,min=1,max=1000,dive,required,abspath,max=4096"`
}
