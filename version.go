package gokusto

// goKustoVersion is the client version reported to the service.
const goKustoVersion = "1.0.0"
