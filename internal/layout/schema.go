package layout

// layoutSchema is the JSON Schema applied to .json layout files before
// decoding. YAML layouts rely on strict decoding plus Validate instead.
const layoutSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["disks", "partitions", "filesystems"],
  "additionalProperties": false,
  "properties": {
    "disks": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "device"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "device": {"type": "string", "pattern": "^/dev/"},
          "role": {"enum": ["data", "boot"]}
        }
      }
    },
    "partitions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "disk", "index", "start", "end"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "disk": {"type": "string", "minLength": 1},
          "index": {"type": "integer", "minimum": 1},
          "start": {"type": "string", "minLength": 1},
          "end": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "boot": {"type": "boolean"}
        }
      }
    },
    "filesystems": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "kind", "partitions"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "kind": {"enum": ["vfat", "btrfs", "swap"]},
          "partitions": {"type": "array", "minItems": 1, "items": {"type": "string"}},
          "label": {"type": "string"},
          "uuid": {"type": "string"},
          "raid": {
            "type": "object",
            "additionalProperties": false,
            "properties": {
              "data": {"type": "string"},
              "meta": {"type": "string"}
            }
          },
          "options": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "mounts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "filesystem", "target"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "filesystem": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1},
          "options": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`
